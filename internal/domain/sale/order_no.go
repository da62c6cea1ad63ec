package sale

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateOrderNo 生成销售单号
// 单号要求：
// 1. 店内唯一（时间戳+随机尾缀，离线也能生成）
// 2. 时间有序（小票按单号排查起来方便）
//
// 格式：XS + 时间戳(秒) + 6位随机数
// 示例：XS1756500000123456
func GenerateOrderNo() string {
	timestamp := time.Now().Unix()
	random := rand.Intn(1000000)
	return fmt.Sprintf("XS%d%06d", timestamp, random)
}
