package response

// Response 通用响应 {success, error, reason}
type Response struct {
	Success bool   `json:"success"`
	Error   bool   `json:"error"`
	Reason  string `json:"reason"`
}

// CreatedURL 创建成功时返回完整短链，方便调用方直接使用
type CreatedURL struct {
	Success    bool   `json:"success"`
	Error      bool   `json:"error"`
	ShortURL   string `json:"shorturl"`
	ExpiryTime int64  `json:"expiry_time"`
}

// LinkInfo 单条短链的详情
type LinkInfo struct {
	Success    bool   `json:"success"`
	Error      bool   `json:"error"`
	LongURL    string `json:"longurl"`
	Hits       int64  `json:"hits"`
	ExpiryTime int64  `json:"expiry_time"`
}

// OK 构造一个成功的响应
func OK(reason string) *Response {
	return &Response{Success: true, Error: false, Reason: reason}
}

// Fail 构造一个失败的响应
func Fail(reason string) *Response {
	return &Response{Success: false, Error: true, Reason: reason}
}

func Created(shortURL string, expiryTime int64) *CreatedURL {
	return &CreatedURL{Success: true, ShortURL: shortURL, ExpiryTime: expiryTime}
}

func Info(longURL string, hits, expiryTime int64) *LinkInfo {
	return &LinkInfo{Success: true, LongURL: longURL, Hits: hits, ExpiryTime: expiryTime}
}
