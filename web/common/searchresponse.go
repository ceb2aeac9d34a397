package common

type Pagination struct {
	Total int64 `json:"total"`
}

// DateRange echoes the shift dates a listing covers after defaults.
type DateRange struct {
	From DateOnly `json:"from"`
	To   DateOnly `json:"to"`
}

type SearchResponse struct {
	Data       any        `json:"data"`
	Range      *DateRange `json:"range,omitempty"`
	Pagination Pagination `json:"pagination"`
}

func NewSearchResponse(data any, total int64) *SearchResponse {
	return &SearchResponse{
		Data: data,
		Pagination: Pagination{
			Total: total,
		},
	}
}

func (r *SearchResponse) WithRange(from, to DateOnly) *SearchResponse {
	r.Range = &DateRange{From: from, To: to}
	return r
}
