package mockserver

import (
	x402http "github.com/ultravioletadao/ultrapayx402/go/http"
)

// DefaultProviders is the generation catalogue served by the mock backend
var DefaultProviders = []x402http.Provider{
	{ID: "nanobanana", Name: "NanoBanana", Type: x402http.MediaImage, Price: 0.10, Description: "Fast and cheap", Model: "nanobanana-v1"},
	{ID: "sd35", Name: "SD3.5", Type: x402http.MediaImage, Price: 0.15, Description: "High quality, versatile", Model: "stable-diffusion-3.5"},
	{ID: "midjourney", Name: "Midjourney", Type: x402http.MediaImage, Price: 0.20, Description: "Premium artistic", Model: "mj-v6"},
	{ID: "veo3", Name: "Veo 3", Type: x402http.MediaVideo, Price: 0.85, Description: "Realistic video", Model: "veo-3"},
	{ID: "runway", Name: "Runway Gen-3", Type: x402http.MediaVideo, Price: 1.20, Description: "Cinematic", Model: "gen-3"},
}

var imageURLs = []string{
	"https://images.unsplash.com/photo-1451187580459-43490279c0fa?w=800",
	"https://images.unsplash.com/photo-1518770660439-4636190af475?w=800",
	"https://images.unsplash.com/photo-1506905925346-21bda4d32df4?w=800",
	"https://images.unsplash.com/photo-1579546929518-9e396f3cc809?w=800",
	"https://images.unsplash.com/photo-1480714378408-67cf0d13bc1b?w=800",
	"https://images.unsplash.com/photo-1505142468610-359e7d316be0?w=800",
	"https://images.unsplash.com/photo-1557672172-298e090bd0f1?w=800",
}

var videoURLs = []string{
	"https://storage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
	"https://storage.googleapis.com/gtv-videos-bucket/sample/ElephantsDream.mp4",
}

func findProvider(providers []x402http.Provider, id string, mediaType x402http.MediaType) (x402http.Provider, bool) {
	if id == "" {
		for _, p := range providers {
			if mediaType == "" || p.Type == mediaType {
				return p, true
			}
		}
		return x402http.Provider{}, false
	}
	for _, p := range providers {
		if p.ID == id {
			return p, true
		}
	}
	return x402http.Provider{}, false
}

func pricing(providers []x402http.Provider) x402http.Pricing {
	var out x402http.Pricing
	out.Currency = "USD"
	out.Providers = make(map[string]float64, len(providers))
	for _, p := range providers {
		out.Providers[p.ID] = p.Price
		switch p.Type {
		case x402http.MediaImage:
			addToRange(&out.ByType.Image, p)
		case x402http.MediaVideo:
			addToRange(&out.ByType.Video, p)
		}
	}
	return out
}

func addToRange(r *x402http.PriceRange, p x402http.Provider) {
	if len(r.Providers) == 0 || p.Price < r.Min {
		r.Min = p.Price
	}
	if len(r.Providers) == 0 || p.Price > r.Max {
		r.Max = p.Price
	}
	r.Providers = append(r.Providers, p)
}
