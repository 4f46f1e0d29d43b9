// Package marker persists the swap record (domain/update.State) as a small
// YAML file next to the executable. The file's presence means "a swap is in
// progress or was interrupted".
package marker
