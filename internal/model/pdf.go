package model

type PdfEmbeddedData struct {
	Result      string  `json:"result"`
	Instruction *string `json:"instruction"`
	Date        string  `json:"date"`
}
