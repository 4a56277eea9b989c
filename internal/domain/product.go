package domain

type ProductAttributes struct {
	Industries     []string `json:"industries,omitempty" yaml:"industries,omitempty"`
	Certifications []string `json:"certifications,omitempty" yaml:"certifications,omitempty"`
	MinOrderQty    string   `json:"minOrderQty,omitempty" yaml:"minOrderQty,omitempty"`
	LeadTimeDays   int      `json:"leadTimeDays,omitempty" yaml:"leadTimeDays,omitempty"`
}

type Product struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name" yaml:"name"`
	Brand            string            `json:"brand" yaml:"brand"`
	Category         string            `json:"category" yaml:"category"`
	Price            float64           `json:"price" yaml:"price"`
	Currency         string            `json:"currency" yaml:"currency"`
	Description      string            `json:"description" yaml:"description"`
	ShortDescription string            `json:"shortDescription" yaml:"shortDescription"`
	ImageURL         string            `json:"imageUrl" yaml:"imageUrl"`
	Attributes       ProductAttributes `json:"attributes" yaml:"attributes"`
	Rating           float64           `json:"rating" yaml:"rating"`
	ReviewCount      int               `json:"reviewCount" yaml:"reviewCount"`
	InStock          bool              `json:"inStock" yaml:"inStock"`
}
