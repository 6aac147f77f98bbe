package provider

import (
	"fmt"

	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// ForModel selects the provider variant for a model descriptor. Gemini models
// advertising the "predict" generation method get the image variant; all
// other Gemini models stream chat; OpenRouter models use the OpenAI-style
// variant.
func ForModel(model types.ModelDescriptor) (ChatProvider, error) {
	switch model.Provider {
	case types.ProviderGemini:
		if model.SupportsPredict() {
			return NewGeminiImageProvider(), nil
		}
		return NewGeminiProvider(), nil
	case types.ProviderOpenRouter:
		return NewOpenRouterProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", model.Provider)
	}
}
