package dto

// ImagesData is the response payload of the gallery listing.
type ImagesData struct {
	Images  []ImageInfo `json:"images"`
	Search  string      `json:"search"`
	Length  int         `json:"length"`
	Notices []string    `json:"notices"`
}
