// Package selfupdate replaces the running miapp executable with the latest
// published release.
//
// An update cycle runs once at startup, before any business work:
//
//  1. CleanupStale removes residue from an interrupted swap (<exe>.old and
//     the <exe>.updating record).
//  2. FeedClient fetches the latest release and IsNewer compares its tag with
//     the local version.
//  3. Downloader stages the platform artifact at <exe>.new.
//  4. A Swapper moves <exe> to <exe>.old, installs <exe>.new and relaunches.
//
// Check and download failures never stop the tool: the cycle reports
// ContinuedOldVersion and the caller goes on with the current binary. Only a
// failure after the live binary was renamed away is reported as
// FatalSwapFailure. Process exit is the caller's decision.
package selfupdate
