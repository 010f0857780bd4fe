package domain

// Question markers for yes/no answers that arrive outside a platform dialog.
const (
	QuestionStartPreorder = "START_PREORDER"
	QuestionOrderMore     = "ORDER_MORE"
)

// SessionAttributes is the per-conversation state persisted by the platform
// between turns. JSON keys match the attribute names the skill has always
// stored so existing sessions and correlation tokens stay readable.
type SessionAttributes struct {
	Products            map[string]CatalogProduct     `json:"Products,omitempty"`
	Basket              map[string]BasketItem         `json:"Basket,omitempty"`
	BasketID            string                        `json:"BasketId,omitempty"`
	RecommendedProducts map[string]RecommendedProduct `json:"RecommendedProducts,omitempty"`
	PreviousQuestion    string                        `json:"PreviousQuestion,omitempty"`
	CognitoUser         *UserDetails                  `json:"CognitoUser,omitempty"`
}

// CatalogProduct is the cached subset of a product record.
type CatalogProduct struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
	URL   string  `json:"url"`
}

type BasketItem struct {
	Quantity int `json:"quantity"`
}

type RecommendedProduct struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Clone returns a deep copy.
func (s SessionAttributes) Clone() SessionAttributes {
	out := SessionAttributes{
		BasketID:         s.BasketID,
		PreviousQuestion: s.PreviousQuestion,
	}
	if s.Products != nil {
		out.Products = make(map[string]CatalogProduct, len(s.Products))
		for k, v := range s.Products {
			out.Products[k] = v
		}
	}
	if s.Basket != nil {
		out.Basket = make(map[string]BasketItem, len(s.Basket))
		for k, v := range s.Basket {
			out.Basket[k] = v
		}
	}
	if s.RecommendedProducts != nil {
		out.RecommendedProducts = make(map[string]RecommendedProduct, len(s.RecommendedProducts))
		for k, v := range s.RecommendedProducts {
			out.RecommendedProducts[k] = v
		}
	}
	if s.CognitoUser != nil {
		u := *s.CognitoUser
		out.CognitoUser = &u
	}
	return out
}
