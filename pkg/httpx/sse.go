package httpx

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// SetupSSEHeaders 设置Server-Sent Events响应头
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// SendSSEChunk 发送一帧 `data: {json}` 数据块。
func SendSSEChunk(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal sse payload: %v", err)
		return
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		log.Printf("failed to write sse frame: %v", err)
		return
	}
	flusher.Flush()
}

// SendSSEComment 发送注释行作为保活帧，客户端按规范忽略。
func SendSSEComment(w http.ResponseWriter, flusher http.Flusher, text string) {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		log.Printf("failed to write sse comment: %v", err)
		return
	}
	flusher.Flush()
}
