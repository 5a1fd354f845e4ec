package openai

type imagesGenerationsRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
	OutputFormat   string `json:"output_format,omitempty"`
}

type imagesGenerationsResponse struct {
	Created int `json:"created"`
	Data    []struct {
		B64JSON []byte `json:"b64_json"`
	} `json:"data"`
}
