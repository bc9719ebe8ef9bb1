package image

import (
	"encoding/json"
	"strings"

	"server/internal/domain"
)

var promptTemplates = map[domain.JobMode]string{
	domain.JobModeStudioWhite: "Precisely isolate the product. Crisp edges. Shadow: subtle studio product shadow. " +
		"Pure white (#FFFFFF) background. No background props. No text. Professional product photography.",
	domain.JobModeModelTryon: "Present the product on a realistic model. Maintain correct scale and placement. " +
		"Clean studio lighting. Neutral backdrop. Focus on product clarity. Natural pose, professional model.",
	domain.JobModeLifestyleScene: "Place the product in a natural setting that fits the category. " +
		"Balanced lighting, photorealistic materials, consistent shadows. Avoid brand logos and text. " +
		"Create an authentic lifestyle environment.",
}

// BuildPrompt resolves the template for a mode and appends any custom
// instructions supplied by the owner.
func BuildPrompt(mode domain.JobMode, custom string) string {
	base := promptTemplates[mode]
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return base
	}
	return base + "\n\nAdditional instructions: " + custom
}

// subOptions are optional refinements carried in the job's opaque parameter
// payload. Unknown fields are ignored.
type subOptions struct {
	ShadowOption     string `json:"shadow_option,omitempty"`
	ModelGender      string `json:"model_gender,omitempty"`
	SceneEnvironment string `json:"scene_environment,omitempty"`
}

func parseSubOptions(raw []byte) subOptions {
	var opts subOptions
	if len(raw) == 0 {
		return opts
	}
	// Malformed payloads degrade to defaults rather than failing the job.
	_ = json.Unmarshal(raw, &opts)
	return opts
}
