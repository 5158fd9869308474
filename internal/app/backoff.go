package app

import "time"

// maxConnectBackoff はストア接続再試行の最大遅延。
const maxConnectBackoff = time.Minute

// connectBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// initialから2倍ずつ増加し、maxConnectBackoffで頭打ちになる。
func connectBackoff(initial time.Duration, consecutiveFailures int) time.Duration {
	delay := initial
	for i := 0; i < consecutiveFailures; i++ {
		delay *= 2
		if delay > maxConnectBackoff {
			return maxConnectBackoff
		}
	}
	return delay
}
