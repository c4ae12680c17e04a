package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// WAVHeader is the canonical 44-byte header written by EncodeWAV.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// WAVInfo describes a decoded WAV file.
type WAVInfo struct {
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	BitsPerSample int     `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      int     `json:"data_size_bytes"`
	NumSamples    int     `json:"num_samples"`
}

// wavFormat holds the fields of the fmt chunk needed for decoding.
type wavFormat struct {
	audioFormat   uint16
	numChannels   uint16
	sampleRate    uint32
	bitsPerSample uint16
}

const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

// EncodeWAV encodes normalized float PCM samples into a 16-bit mono WAV
// file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)
	fileSize := 36 + dataSize

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     fileSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		pcm[i] = int16(math.Round(v * 32767))
	}

	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes a WAV file into normalized float mono samples and the
// file's sample rate. 8/16/24/32-bit integer PCM and 32-bit IEEE float
// are supported; stereo input is averaged down to mono.
func DecodeWAV(data []byte) ([]float32, int, error) {
	format, pcm, err := parseWAVChunks(data)
	if err != nil {
		return nil, 0, err
	}

	bytesPerSample := int(format.bitsPerSample) / 8
	channels := int(format.numChannels)
	frameSize := bytesPerSample * channels

	numFrames := len(pcm) / frameSize
	if numFrames == 0 {
		return nil, 0, fmt.Errorf("no audio data found")
	}

	samples := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			offset := i*frameSize + ch*bytesPerSample
			sum += decodeSample(pcm[offset:offset+bytesPerSample], format)
		}
		samples[i] = float32(sum / float64(channels))
	}

	return samples, int(format.sampleRate), nil
}

// decodeSample converts one little-endian encoded sample to [-1, 1].
// The bit depth has already been validated by parseWAVChunks.
func decodeSample(raw []byte, format wavFormat) float64 {
	switch format.bitsPerSample {
	case 8:
		// 8-bit WAV is unsigned.
		return (float64(raw[0]) - 128) / 128
	case 16:
		v := int16(binary.LittleEndian.Uint16(raw))
		return float64(v) / 32768
	case 24:
		v := int32(raw[0]) | int32(raw[1])<<8 | int32(raw[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF) // sign extend
		}
		return float64(v) / 8388608
	default:
		bits := binary.LittleEndian.Uint32(raw)
		if format.audioFormat == wavFormatIEEEFloat {
			return float64(math.Float32frombits(bits))
		}
		return float64(int32(bits)) / 2147483648
	}
}

// parseWAVChunks validates the RIFF/WAVE container and walks its chunks
// to locate the fmt and data blocks.
func parseWAVChunks(data []byte) (wavFormat, []byte, error) {
	var format wavFormat

	if len(data) < 12 {
		return format, nil, fmt.Errorf("WAV data too short: need at least 12 bytes, got %d", len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return format, nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(data[8:12]) != "WAVE" {
		return format, nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var pcm []byte
	haveFmt := false
	haveData := false

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		if chunkSize < 0 || body+chunkSize > len(data) {
			return format, nil, fmt.Errorf("truncated WAV chunk %q: declares %d bytes, %d available",
				chunkID, chunkSize, len(data)-body)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return format, nil, fmt.Errorf("invalid WAV file: fmt chunk too small (%d bytes)", chunkSize)
			}
			format.audioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			format.numChannels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			format.sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			format.bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
			haveData = true
		}

		// Chunks are word-aligned.
		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !haveFmt {
		return format, nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if !haveData {
		return format, nil, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	if format.audioFormat != wavFormatPCM && format.audioFormat != wavFormatIEEEFloat {
		return format, nil, fmt.Errorf("unsupported audio format: %d (only PCM and IEEE float are supported)",
			format.audioFormat)
	}

	if format.audioFormat == wavFormatIEEEFloat && format.bitsPerSample != 32 {
		return format, nil, fmt.Errorf("unsupported float bit depth: %d (only 32-bit float is supported)",
			format.bitsPerSample)
	}

	switch format.bitsPerSample {
	case 8, 16, 24, 32:
	default:
		return format, nil, fmt.Errorf("unsupported bit depth: %d (supported: 8, 16, 24, 32)",
			format.bitsPerSample)
	}

	if format.numChannels != 1 && format.numChannels != 2 {
		return format, nil, fmt.Errorf("unsupported channel count: %d (only mono and stereo are supported)",
			format.numChannels)
	}

	if format.sampleRate == 0 {
		return format, nil, fmt.Errorf("invalid sample rate: 0")
	}

	return format, pcm, nil
}

// ValidateWAV validates a WAV container without decoding the audio data.
func ValidateWAV(data []byte) error {
	_, _, err := parseWAVChunks(data)
	return err
}

// GetWAVInfo extracts metadata from a WAV file.
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	format, pcm, err := parseWAVChunks(data)
	if err != nil {
		return nil, err
	}

	frameSize := int(format.bitsPerSample) / 8 * int(format.numChannels)
	numSamples := len(pcm) / frameSize

	return &WAVInfo{
		SampleRate:    int(format.sampleRate),
		Channels:      int(format.numChannels),
		BitsPerSample: int(format.bitsPerSample),
		Duration:      float64(numSamples) / float64(format.sampleRate),
		DataSize:      len(pcm),
		NumSamples:    numSamples,
	}, nil
}

// GetWAVDuration calculates the duration of a WAV file in seconds.
func GetWAVDuration(data []byte) (float64, error) {
	info, err := GetWAVInfo(data)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// IsWAV reports whether the data starts with a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// Resample converts samples between sample rates using linear
// interpolation. Identical source and destination rates return the input
// unchanged.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 || srcRate <= 0 || dstRate <= 0 {
		return samples
	}

	outLen := int(math.Round(float64(len(samples)) * float64(dstRate) / float64(srcRate)))
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float32, outLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}

	return out
}
