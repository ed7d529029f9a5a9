package client

import "time"

const (
	// initialBackoff は最初の再接続待ち時間。
	initialBackoff = time.Second
	// maxBackoff は再接続待ち時間の上限。
	maxBackoff = 30 * time.Second
)

// CalculateBackoff は再接続試行 n 回目（0始まり）の前の待ち時間を返す。
// 1秒から倍々に増え、上限は30秒。
func CalculateBackoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
