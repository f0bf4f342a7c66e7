package entity

// RawDocument is an uploaded document handed to the extraction pipeline.
// It is not retained once extraction finishes.
type RawDocument struct {
	Content   []byte `json:"-"`
	MediaType string `json:"media_type"` // pdf | jpg | jpeg | png
	FileName  string `json:"file_name"`
}
