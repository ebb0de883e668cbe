package stream

import (
	"bufio"
	"bytes"
	"io"
)

// dataPrefix SSE 数据帧的固定前缀，其余行按保活/注释忽略。
var dataPrefix = []byte("data: ")

// maxFrameSize 单帧上限。模型单次增量远小于此，完整简历 Markdown 也足够。
const maxFrameSize = 1 << 20

// FrameReader 把字节流切成一条条 `data: ` 帧，I/O 与协议解析分离。
type FrameReader struct {
	scanner *bufio.Scanner
}

// NewFrameReader wraps r and yields data frames line by line.
func NewFrameReader(r io.Reader) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)
	return &FrameReader{scanner: scanner}
}

// Next 返回下一帧的 JSON 载荷。流结束返回 io.EOF，
// 读取中断返回底层错误。
func (fr *FrameReader) Next() ([]byte, error) {
	for fr.scanner.Scan() {
		line := fr.scanner.Bytes()
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := bytes.TrimSpace(line[len(dataPrefix):])
		if len(payload) == 0 {
			continue
		}

		// Scanner 复用内部缓冲，交给调用方前须拷贝。
		frame := make([]byte, len(payload))
		copy(frame, payload)
		return frame, nil
	}

	if err := fr.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
