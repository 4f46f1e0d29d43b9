// Package submitter posts the staged files of every configured API.
//
// A run obtains one bearer token, then walks the API groups in ascending
// concurrency level. APIs of a group run together; each API builds its payload
// once and fires all its repetitions at the same instant. Every response is
// saved next to the inputs (or in carpeta_respuestas).
package submitter
