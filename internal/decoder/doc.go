// Package decoder turns model output logits into text using greedy CTC
// decoding followed by sub-word detokenization.
package decoder
