package blueprint

type TimeOfDay string

const (
	TimeSunrise    TimeOfDay = "sunrise"
	TimeDay        TimeOfDay = "day"
	TimeSunset     TimeOfDay = "sunset"
	TimeNight      TimeOfDay = "night"
	TimeGoldenHour TimeOfDay = "golden hour"
	TimeBlueHour   TimeOfDay = "blue hour"
)

type Weather string

const (
	WeatherClear    Weather = "clear"
	WeatherMisty    Weather = "misty"
	WeatherRainy    Weather = "rainy"
	WeatherStormy   Weather = "stormy"
	WeatherSnowy    Weather = "snowy"
	WeatherOvercast Weather = "overcast"
)

type CameraAngle string

const (
	AngleEyeLevel  CameraAngle = "eye-level"
	AngleLow       CameraAngle = "low-angle"
	AngleHigh      CameraAngle = "high-angle"
	AngleDutch     CameraAngle = "dutch-angle"
	AngleWideShot  CameraAngle = "wide-shot"
	AngleCloseUp   CameraAngle = "close-up"
	AngleDroneShot CameraAngle = "drone-shot"
)

type CameraFOV string

const (
	FOVNarrow    CameraFOV = "narrow"
	FOVMedium    CameraFOV = "medium"
	FOVWide      CameraFOV = "wide"
	FOVUltraWide CameraFOV = "ultra-wide"
)

type ArtisticStyle string

const (
	StylePhotorealistic  ArtisticStyle = "photorealistic"
	StyleImpressionistic ArtisticStyle = "impressionistic"
	StyleCelShaded       ArtisticStyle = "cel-shaded"
	StyleConceptArt      ArtisticStyle = "concept-art"
	StyleMattePainting   ArtisticStyle = "matte-painting"
	StyleCinematic       ArtisticStyle = "cinematic"
)

type Lighting string

const (
	LightingDramatic   Lighting = "dramatic"
	LightingSoft       Lighting = "soft"
	LightingFlat       Lighting = "flat"
	LightingRim        Lighting = "rim-lighting"
	LightingNeon       Lighting = "neon"
	LightingVolumetric Lighting = "volumetric"
)

type Palette string

const (
	PaletteWarm          Palette = "warm"
	PaletteCool          Palette = "cool"
	PaletteVibrant       Palette = "vibrant"
	PaletteMonochromatic Palette = "monochromatic"
	PalettePastel        Palette = "pastel"
	PaletteMuted         Palette = "muted"
)

// AspectRatio is one of the five ratios the image model accepts.
type AspectRatio string

const (
	Ratio16x9 AspectRatio = "16:9"
	Ratio9x16 AspectRatio = "9:16"
	Ratio1x1  AspectRatio = "1:1"
	Ratio4x3  AspectRatio = "4:3"
	Ratio3x4  AspectRatio = "3:4"
)

var (
	timesOfDay     = []string{"sunrise", "day", "sunset", "night", "golden hour", "blue hour"}
	weathers       = []string{"clear", "misty", "rainy", "stormy", "snowy", "overcast"}
	cameraAngles   = []string{"eye-level", "low-angle", "high-angle", "dutch-angle", "wide-shot", "close-up", "drone-shot"}
	cameraFOVs     = []string{"narrow", "medium", "wide", "ultra-wide"}
	artisticStyles = []string{"photorealistic", "impressionistic", "cel-shaded", "concept-art", "matte-painting", "cinematic"}
	lightings      = []string{"dramatic", "soft", "flat", "rim-lighting", "neon", "volumetric"}
	palettes       = []string{"warm", "cool", "vibrant", "monochromatic", "pastel", "muted"}
	aspectRatios   = []string{"16:9", "9:16", "1:1", "4:3", "3:4"}
)

func TimesOfDay() []string     { return clone(timesOfDay) }
func Weathers() []string       { return clone(weathers) }
func CameraAngles() []string   { return clone(cameraAngles) }
func CameraFOVs() []string     { return clone(cameraFOVs) }
func ArtisticStyles() []string { return clone(artisticStyles) }
func Lightings() []string      { return clone(lightings) }
func Palettes() []string       { return clone(palettes) }
func AspectRatios() []string   { return clone(aspectRatios) }

func (v TimeOfDay) Valid() bool     { return contains(timesOfDay, string(v)) }
func (v Weather) Valid() bool       { return contains(weathers, string(v)) }
func (v CameraAngle) Valid() bool   { return contains(cameraAngles, string(v)) }
func (v CameraFOV) Valid() bool     { return contains(cameraFOVs, string(v)) }
func (v ArtisticStyle) Valid() bool { return contains(artisticStyles, string(v)) }
func (v Lighting) Valid() bool      { return contains(lightings, string(v)) }
func (v Palette) Valid() bool       { return contains(palettes, string(v)) }
func (v AspectRatio) Valid() bool   { return contains(aspectRatios, string(v)) }

// Blueprint is the structured creative plan produced by the text
// model. FinalPrompt is the only field consumed by image generation.
type Blueprint struct {
	Scene       Scene     `json:"scene" yaml:"scene"`
	Camera      Camera    `json:"camera" yaml:"camera"`
	Style       Style     `json:"style" yaml:"style"`
	Rendering   Rendering `json:"rendering" yaml:"rendering"`
	FinalPrompt string    `json:"finalPrompt" yaml:"finalPrompt"`
}

type Scene struct {
	Environment string    `json:"environment" yaml:"environment"`
	Subjects    []string  `json:"subjects" yaml:"subjects"`
	TimeOfDay   TimeOfDay `json:"timeOfDay" yaml:"timeOfDay"`
	Weather     Weather   `json:"weather" yaml:"weather"`
}

type Camera struct {
	Angle CameraAngle `json:"angle" yaml:"angle"`
	FOV   CameraFOV   `json:"fov" yaml:"fov"`
}

type Style struct {
	ArtisticStyle ArtisticStyle `json:"artisticStyle" yaml:"artisticStyle"`
	Lighting      Lighting      `json:"lighting" yaml:"lighting"`
	Palette       Palette       `json:"palette" yaml:"palette"`
}

type Rendering struct {
	Effects     []string    `json:"effects" yaml:"effects"`
	AspectRatio AspectRatio `json:"aspectRatio" yaml:"aspectRatio"`
}

// Clone returns a deep copy so snapshots never share slices.
func (b Blueprint) Clone() Blueprint {
	out := b
	out.Scene.Subjects = clone(b.Scene.Subjects)
	out.Rendering.Effects = clone(b.Rendering.Effects)
	return out
}

func clone(list []string) []string {
	if list == nil {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
