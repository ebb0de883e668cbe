package httpx

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondError 发送 {success:false, error:...} 格式的错误响应。
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// RespondErrors 发送携带多条人类可读错误的响应，用于表单校验类失败。
func RespondErrors(w http.ResponseWriter, status int, errs []string) {
	RespondJSON(w, status, map[string]interface{}{
		"success": false,
		"errors":  errs,
	})
}
