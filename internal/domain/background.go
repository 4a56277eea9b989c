package domain

// BackgroundRequest is what the scene asks the background pipeline for.
type BackgroundRequest struct {
	Setting      Setting
	Products     []Product
	Mood         string
	Prompt       string
	CMSAssetID   string
	CMSTag       string
	SceneAssetID string
	ImageURL     string
	EditMode     bool
	Generate     bool
	Regenerate   bool
}

// RequestFromHints copies directive hints onto a request.
func RequestFromHints(setting Setting, h *SceneHints, products []Product) BackgroundRequest {
	req := BackgroundRequest{Setting: setting, Products: products}
	if h == nil {
		return req
	}
	req.Mood = h.Mood
	req.Prompt = h.Prompt
	req.CMSAssetID = h.CMSAssetID
	req.CMSTag = h.CMSTag
	req.SceneAssetID = h.SceneAssetID
	req.ImageURL = h.ImageURL
	req.EditMode = h.EditMode
	req.Generate = h.Generate
	req.Regenerate = h.Regenerate
	return req
}
