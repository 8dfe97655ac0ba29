// Package submit relays form submissions to a hosted form provider and
// drives the form's feedback regions.
//
// A Controller registers every form matched by its selector. Each
// Registration moves through four states:
//
//	Idle -> Loading -> Success -> Idle   (after SuccessHideDelay)
//	                -> Error   -> Idle   (after ErrorHideDelay)
//
// Loading shows the loading region, disables the submit button and swaps its
// content for a busy label. The original content is captured once, on the
// first loading transition, and put back whenever loading ends.
//
// Success resets the form fields to the values present at discovery. Error
// writes a message into the error region; the message comes from the
// SubmissionError, whose Type is one of Configuration, Transport, Provider
// or Parse.
//
// # Overlapping submissions
//
// Every attempt increments the registration's generation. A response that
// arrives after a newer attempt started is reported to observers with
// Outcome.Stale set and otherwise ignored. Auto-hide timers carry the
// generation that armed them and do nothing once it is outdated.
package submit
