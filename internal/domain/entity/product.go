package entity

// Product is owned by the catalog. PID is the public listing id.
type Product struct {
	ID      string `json:"id"`
	PID     string `json:"pid"`
	Name    string `json:"name"`
	Image   string `json:"image,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
}

func (p *Product) Info() *ProductInfo {
	return &ProductInfo{ID: p.ID, PID: p.PID, Name: p.Name, Image: p.Image}
}

type ProductInfo struct {
	ID    string `json:"id"`
	PID   string `json:"pid"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}
