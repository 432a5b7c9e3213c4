// Package audio captures microphone audio through an external encoder
// process and turns it into chat input via the backend transcription
// endpoints. A recording owns the microphone exclusively; the elapsed
// counter and level meter are goroutines bound to the recording's lifetime
// and are joined on every exit path.
package audio
