package gateway

// registerRequest はPOST /auth/registerのリクエストボディ。
type registerRequest struct {
	Username string `json:"username" binding:"required,username"`
	Password string `json:"password" binding:"required,max=72"`
	Role     string `json:"role,omitempty" binding:"omitempty,oneof=user admin"`
}

// registerResponse はPOST /auth/registerのレスポンスボディ。
type registerResponse struct {
	Message string `json:"message"`
}

// loginRequest はPOST /auth/loginのリクエストボディ。
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// tokenResponse はPOST /auth/loginのレスポンスボディ。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// productRequest はPOST /productsのリクエストボディ。
type productRequest struct {
	Name  string  `json:"name" binding:"required"`
	Price float64 `json:"price" binding:"gt=0"`
}

// product は商品。
type product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// orderRequest はPOST /ordersのリクエストボディ。
type orderRequest struct {
	ProductID int64 `json:"product_id" binding:"gt=0"`
	Quantity  int   `json:"quantity" binding:"gt=0"`
}

// order は注文。
type order struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
	User      string `json:"user"`
}
