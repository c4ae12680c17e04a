package decoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/model"
)

// ErrBadShape reports an output tensor whose rank or dimensions do not
// match the [time, vocab] / [batch, time, vocab] contract.
var ErrBadShape = errors.New("unexpected logits shape")

// Sentinel tokens dropped during detokenization.
var droppedTokens = map[string]bool{
	"":        true,
	"<blank>": true,
	"<pad>":   true,
	"<unk>":   true,
	"<s>":     true,
	"</s>":    true,
}

// Greedy performs greedy CTC decoding: per time step, pick the argmax
// vocabulary index, then collapse blanks and consecutive repeats.
// Accepts [time, vocab] or single-batch [batch, time, vocab] logits.
func Greedy(lg *model.Logits, blankID int) ([]int, error) {
	steps, vocabSize, offset, err := logitsLayout(lg)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, steps)
	prev := -1
	for t := 0; t < steps; t++ {
		row := lg.Data[offset+t*vocabSize : offset+(t+1)*vocabSize]

		best := 0
		bestVal := row[0]
		for i := 1; i < vocabSize; i++ {
			if row[i] > bestVal {
				best = i
				bestVal = row[i]
			}
		}

		if best != blankID && best != prev {
			ids = append(ids, best)
		}
		prev = best
	}

	return ids, nil
}

// logitsLayout validates the tensor rank and returns (timeSteps,
// vocabSize, dataOffset). For rank-3 tensors only the first batch entry
// is decoded.
func logitsLayout(lg *model.Logits) (int, int, int, error) {
	switch len(lg.Shape) {
	case 2:
		steps, vocab := lg.Shape[0], lg.Shape[1]
		if steps < 0 || vocab < 1 || steps*vocab > len(lg.Data) {
			return 0, 0, 0, fmt.Errorf("%w: [%d, %d] with %d values", ErrBadShape, steps, vocab, len(lg.Data))
		}
		return steps, vocab, 0, nil
	case 3:
		batch, steps, vocab := lg.Shape[0], lg.Shape[1], lg.Shape[2]
		if batch < 1 || steps < 0 || vocab < 1 || batch*steps*vocab > len(lg.Data) {
			return 0, 0, 0, fmt.Errorf("%w: [%d, %d, %d] with %d values", ErrBadShape, batch, steps, vocab, len(lg.Data))
		}
		return steps, vocab, 0, nil
	default:
		return 0, 0, 0, fmt.Errorf("%w: rank %d, want 2 or 3", ErrBadShape, len(lg.Shape))
	}
}

// Detokenize maps collapsed token ids to text. SentencePiece word-start
// markers become spaces and WordPiece continuation markers are stripped.
// With a nil vocabulary, ids in (0, 256) are interpreted directly as
// character codes.
func Detokenize(ids []int, vocab *model.Vocabulary) string {
	var sb strings.Builder

	for _, id := range ids {
		if vocab == nil {
			if id > 0 && id < 256 {
				sb.WriteByte(byte(id))
			}
			continue
		}

		token, ok := vocab.Token(id)
		if !ok || droppedTokens[token] {
			continue
		}

		token = strings.ReplaceAll(token, model.SentencePieceMarker, " ")
		token = strings.TrimPrefix(token, model.WordPieceMarker)
		sb.WriteString(token)
	}

	return strings.TrimSpace(sb.String())
}

// Decode runs greedy CTC decoding and detokenization in one step.
func Decode(lg *model.Logits, vocab *model.Vocabulary, blankID int) (string, error) {
	ids, err := Greedy(lg, blankID)
	if err != nil {
		return "", err
	}
	return Detokenize(ids, vocab), nil
}
