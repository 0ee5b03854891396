package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/rand/v2"

	"github.com/slighter12/calc-mcp-go/tools/types"
)

// ReturnImageTool returns the configured image asset.
type ReturnImageTool struct {
	Asset *ImageAsset
}

func (t *ReturnImageTool) Name() string              { return "return_image" }
func (t *ReturnImageTool) Description() string       { return "Returns an image" }
func (t *ReturnImageTool) Params() []types.Param     { return nil }
func (t *ReturnImageTool) Returns() types.ReturnKind { return types.ReturnImage }
func (t *ReturnImageTool) Execute(_ context.Context, _ types.Arguments) (types.Result, error) {
	asset := t.Asset
	if asset == nil {
		asset = NewImageAsset("", "")
	}
	data, mimeType, err := asset.Load()
	if err != nil {
		return types.Result{}, types.NewNotAvailableError("Image asset is unavailable", map[string]any{
			"path":   asset.Path(),
			"reason": err.Error(),
			"tool":   t.Name(),
		})
	}
	return types.Image(data, mimeType), nil
}

// ReturnAudioTool returns one second of random 16-bit mono noise as WAV.
type ReturnAudioTool struct{}

func (t *ReturnAudioTool) Name() string              { return "return_audio" }
func (t *ReturnAudioTool) Description() string       { return "Returns random audio" }
func (t *ReturnAudioTool) Params() []types.Param     { return nil }
func (t *ReturnAudioTool) Returns() types.ReturnKind { return types.ReturnAudio }
func (t *ReturnAudioTool) Execute(_ context.Context, _ types.Arguments) (types.Result, error) {
	return types.Audio(NoiseWAV(8000, 1), "audio/wav"), nil
}

// NoiseWAV renders seconds of random PCM samples at sampleRate as a WAV file.
func NoiseWAV(sampleRate, seconds int) []byte {
	numSamples := sampleRate * seconds
	dataSize := uint32(numSamples * 2)

	var buf bytes.Buffer
	buf.Grow(44 + int(dataSize))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)

	samples := make([]int16, numSamples)
	for i := range samples {
		samples[i] = int16(rand.IntN(65536) - 32768)
	}
	_ = binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// GetAllTools returns all media tools; asset backs return_image.
func GetAllTools(asset *ImageAsset) []types.Tool {
	return []types.Tool{
		&ReturnImageTool{Asset: asset},
		&ReturnAudioTool{},
	}
}
