// Package dsp converts PCM audio into the normalized log-mel spectrograms
// the acoustic model consumes. The extraction is deterministic: the same
// samples and configuration always produce bit-identical features.
package dsp
