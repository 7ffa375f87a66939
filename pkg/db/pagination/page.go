package pagination

// Page is a 1-based offset page request.
type Page struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Normalize applies defaults and clamps the limit to max.
func (p Page) Normalize(defaultLimit, max int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if max > 0 && p.Limit > max {
		p.Limit = max
	}
	return p
}

func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
