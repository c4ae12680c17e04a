// Package audio handles audio buffering, chunking, and format conversion.
// It implements WAV encode/decode with multi-format PCM support, sample rate
// conversion, overlapping chunk splitting for long recordings, and merging
// of per-chunk transcripts back into one text.
package audio
