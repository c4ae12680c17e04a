package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// buildWAV assembles a WAV file from raw PCM bytes for decoder tests.
func buildWAV(audioFormat, channels, sampleRate, bitsPerSample int, pcm []byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormat))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*bitsPerSample/8))
	binary.Write(buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func TestEncodeWAV(t *testing.T) {
	// 440Hz sine wave for 0.1 seconds at 16kHz
	sampleRate := 16000
	numSamples := sampleRate / 10
	samples := make([]float32, numSamples)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// 44-byte header plus 16-bit mono payload
	expectedSize := 44 + numSamples*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}
	if info.SampleRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}
	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}
	if math.Abs(info.Duration-0.1) > 0.001 {
		t.Errorf("Expected duration 0.100, got %.3f", info.Duration)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	sampleRate := 16000
	original := make([]float32, 1600)
	for i := range original {
		original[i] = float32(0.8 * math.Sin(2*math.Pi*220*float64(i)/float64(sampleRate)))
	}

	wavData, err := EncodeWAV(original, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, decodedRate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decodedRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, decodedRate)
	}
	if len(decoded) != len(original) {
		t.Fatalf("Expected %d samples, got %d", len(original), len(decoded))
	}

	// 16-bit quantization bounds the round-trip error.
	tolerance := float32(1.0 / 32767)
	for i := range original {
		diff := decoded[i] - original[i]
		if diff < -tolerance || diff > tolerance {
			t.Fatalf("Sample %d: expected %f, got %f (diff %f)", i, original[i], decoded[i], diff)
		}
	}
}

func TestEncodeWAVClampsOutOfRange(t *testing.T) {
	wavData, err := EncodeWAV([]float32{2.0, -2.0}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, _, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decoded[0] < 0.99 {
		t.Errorf("Expected positive clipping near 1.0, got %f", decoded[0])
	}
	if decoded[1] > -0.99 {
		t.Errorf("Expected negative clipping near -1.0, got %f", decoded[1])
	}
}

func TestDecodeWAV8Bit(t *testing.T) {
	// 8-bit WAV stores unsigned samples centered on 128.
	pcm := []byte{128, 255, 0, 192}
	wavData := buildWAV(wavFormatPCM, 1, 8000, 8, pcm)

	decoded, rate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 8000 {
		t.Errorf("Expected rate 8000, got %d", rate)
	}

	expected := []float32{0, 127.0 / 128, -1, 0.5}
	for i, want := range expected {
		if math.Abs(float64(decoded[i]-want)) > 1e-6 {
			t.Errorf("Sample %d: expected %f, got %f", i, want, decoded[i])
		}
	}
}

func TestDecodeWAV24Bit(t *testing.T) {
	// +0.5 and -0.5 in 24-bit little-endian two's complement.
	pcm := []byte{
		0x00, 0x00, 0x40, // 4194304 = 2^22
		0x00, 0x00, 0xC0, // -4194304
	}
	wavData := buildWAV(wavFormatPCM, 1, 16000, 24, pcm)

	decoded, _, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if math.Abs(float64(decoded[0]-0.5)) > 1e-6 {
		t.Errorf("Expected 0.5, got %f", decoded[0])
	}
	if math.Abs(float64(decoded[1]+0.5)) > 1e-6 {
		t.Errorf("Expected -0.5, got %f", decoded[1])
	}
}

func TestDecodeWAV32BitFloat(t *testing.T) {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, []float32{0.25, -0.75})
	wavData := buildWAV(wavFormatIEEEFloat, 1, 16000, 32, buf.Bytes())

	decoded, _, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decoded[0] != 0.25 {
		t.Errorf("Expected 0.25, got %f", decoded[0])
	}
	if decoded[1] != -0.75 {
		t.Errorf("Expected -0.75, got %f", decoded[1])
	}
}

func TestDecodeWAVStereoAveraged(t *testing.T) {
	// Two 16-bit frames: (0.5, -0.5) averages to 0, (0.5, 0.5) to 0.5.
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, []int16{16384, -16384, 16384, 16384})
	wavData := buildWAV(wavFormatPCM, 2, 16000, 16, buf.Bytes())

	decoded, _, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if len(decoded) != 2 {
		t.Fatalf("Expected 2 mono samples from 2 stereo frames, got %d", len(decoded))
	}
	if math.Abs(float64(decoded[0])) > 1e-6 {
		t.Errorf("Expected averaged 0, got %f", decoded[0])
	}
	if math.Abs(float64(decoded[1]-0.5)) > 1e-6 {
		t.Errorf("Expected averaged 0.5, got %f", decoded[1])
	}
}

func TestDecodeWAVMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte{1, 2, 3}},
		{"wrong magic", append([]byte("FAKE"), make([]byte, 40)...)},
		{"riff without wave", append([]byte("RIFF\x00\x00\x00\x00JUNK"), make([]byte, 32)...)},
		{"missing data chunk", buildWAV(wavFormatPCM, 1, 16000, 16, nil)[:28]},
		{"unsupported bit depth", buildWAV(wavFormatPCM, 1, 16000, 12, make([]byte, 12))},
		{"unsupported channels", buildWAV(wavFormatPCM, 4, 16000, 16, make([]byte, 16))},
		{"unsupported codec", buildWAV(7, 1, 16000, 16, make([]byte, 16))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeWAV(tt.data); err == nil {
				t.Error("Expected decode error but got none")
			}
		})
	}
}

func TestDecodeWAVTruncatedChunk(t *testing.T) {
	wavData := buildWAV(wavFormatPCM, 1, 16000, 16, make([]byte, 64))
	// Chop the data chunk body short of its declared size.
	if _, _, err := DecodeWAV(wavData[:len(wavData)-10]); err == nil {
		t.Error("Expected error for truncated data chunk")
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV([]float32{}, 16000); err == nil {
		t.Error("Expected error for empty samples")
	}
}

func TestEncodeWAVInvalidSampleRate(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3}
	if _, err := EncodeWAV(samples, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := EncodeWAV(samples, -1000); err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestGetWAVDuration(t *testing.T) {
	sampleRate := 16000
	samples := make([]float32, sampleRate) // 1 second

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	duration, err := GetWAVDuration(wavData)
	if err != nil {
		t.Fatalf("GetWAVDuration failed: %v", err)
	}
	if math.Abs(duration-1.0) > 0.001 {
		t.Errorf("Expected duration 1.000, got %.3f", duration)
	}
}

func TestIsWAV(t *testing.T) {
	wavData, err := EncodeWAV([]float32{0.1}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if !IsWAV(wavData) {
		t.Error("Expected IsWAV true for encoded file")
	}
	if IsWAV([]byte("definitely not audio")) {
		t.Error("Expected IsWAV false for junk")
	}
	if IsWAV(nil) {
		t.Error("Expected IsWAV false for nil")
	}
}

func TestResampleIdentity(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3}
	out := Resample(samples, 16000, 16000)
	if len(out) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(out))
	}
	for i := range samples {
		if out[i] != samples[i] {
			t.Errorf("Sample %d changed: %f -> %f", i, samples[i], out[i])
		}
	}
}

func TestResampleUpsample(t *testing.T) {
	// 4 samples at 8kHz become 8 samples at 16kHz.
	samples := []float32{0, 0.2, 0.4, 0.6}
	out := Resample(samples, 8000, 16000)
	if len(out) != 8 {
		t.Fatalf("Expected 8 samples, got %d", len(out))
	}

	// Midpoints land halfway between neighbors under linear interpolation.
	if math.Abs(float64(out[1]-0.1)) > 1e-6 {
		t.Errorf("Expected interpolated 0.1, got %f", out[1])
	}
	if out[0] != 0 {
		t.Errorf("Expected first sample unchanged, got %f", out[0])
	}
}

func TestResampleDownsample(t *testing.T) {
	samples := make([]float32, 1600)
	out := Resample(samples, 16000, 8000)
	if len(out) != 800 {
		t.Errorf("Expected 800 samples after 2:1 downsample, got %d", len(out))
	}
}
