// Package track turns raw device records into the speed and moving-duration
// samples stored in the time-series database. It holds the numeric filter,
// the timestamp derivation from the split date and time fields, and the
// moving threshold.
package track
