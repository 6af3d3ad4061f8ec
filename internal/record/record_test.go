package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDropsOutOfRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rec       Record
		wantSteps bool
		wantCFG   bool
		wantW     bool
		wantH     bool
	}{
		{
			name:      "all in range",
			rec:       Record{Steps: Ptr(20), CFG: Ptr(7.5), Width: Ptr(512), Height: Ptr(768)},
			wantSteps: true, wantCFG: true, wantW: true, wantH: true,
		},
		{
			name: "boundaries",
			rec:  Record{Steps: Ptr(1000), CFG: Ptr(0.1), Width: Ptr(64), Height: Ptr(8192)},
			wantSteps: true, wantCFG: true, wantW: true, wantH: true,
		},
		{
			name: "all out of range",
			rec:  Record{Steps: Ptr(0), CFG: Ptr(31.0), Width: Ptr(32), Height: Ptr(9000)},
		},
		{
			name:    "steps too high",
			rec:     Record{Steps: Ptr(1001), CFG: Ptr(30.0)},
			wantCFG: true,
		},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := tt.rec
			rec.Validate()
			assert.Equal(t, tt.wantSteps, rec.Steps != nil)
			assert.Equal(t, tt.wantCFG, rec.CFG != nil)
			assert.Equal(t, tt.wantW, rec.Width != nil)
			assert.Equal(t, tt.wantH, rec.Height != nil)
		})
	}
}

func TestValidateClearsEmptyBlocks(t *testing.T) {
	t.Parallel()

	rec := Record{ControlNet: &ControlNet{}, HiRes: &HiRes{}}
	rec.Validate()
	assert.Nil(t, rec.ControlNet)
	assert.Nil(t, rec.HiRes)
}

func TestFieldCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, (*Record)(nil).FieldCount())
	assert.Equal(t, 0, (&Record{Path: "/x.png", Source: SourceComfyUI, Raw: map[string]string{"a": "b"}}).FieldCount())

	rec := &Record{
		Model:      "sdxl",
		Prompt:     "cat",
		Steps:      Ptr(20),
		Seed:       Ptr(int64(42)),
		LoRA:       []LoRA{{Name: "foo", Weight: 1}},
		ControlNet: &ControlNet{Model: "canny"},
		HiRes:      &HiRes{},
		Sampler:    "   ",
	}
	assert.Equal(t, 6, rec.FieldCount())
}

func TestTitleHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "all parts",
			rec:  Record{Path: "test.png", Model: "sd-v1-5", Steps: Ptr(20), CFG: Ptr(7.5), Seed: Ptr(int64(123))},
			want: "sd-v1-5-s20-cfg7.5-seed123",
		},
		{
			name: "whole cfg trimmed",
			rec:  Record{Path: "test.png", Model: "m", CFG: Ptr(7.0)},
			want: "m-cfg7",
		},
		{
			name: "base model fallback",
			rec:  Record{Path: "test.png", BaseModel: "SDXL", Steps: Ptr(30)},
			want: "SDXL-s30",
		},
		{
			name: "stem fallback",
			rec:  Record{Path: "/images/test.final.png"},
			want: "test.final",
		},
		{
			name: "no path",
			rec:  Record{},
			want: "image",
		},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.rec.TitleHint())
		})
	}
}

func TestDimensions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512x768", (&Record{Width: Ptr(512), Height: Ptr(768)}).Dimensions())
	assert.Equal(t, "", (&Record{Width: Ptr(512)}).Dimensions())
}

func TestUnrecognizedStub(t *testing.T) {
	t.Parallel()

	rec := Unrecognized(map[string]string{"Software": "x"})
	require.NotNil(t, rec)
	assert.True(t, rec.Unrecognized)
	assert.Equal(t, SourceUnrecognized, rec.Source)
	assert.Equal(t, 0, rec.FieldCount())
}

func TestJSONOmitsAbsentFields(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(&Record{Path: "a.png", Source: SourceNovelAI, Steps: Ptr(28)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"a.png","source":"NovelAI","steps":28}`, string(data))
}
