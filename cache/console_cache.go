package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Praetorius/core/scatter"

	"github.com/go-redis/redis/v8"
)

const (
	// 主题偏好长期保留，浏览提示只在当次会话内有效
	themeTTL     = 365 * 24 * time.Hour
	selectionTTL = 30 * 24 * time.Hour
	hintTTL      = 12 * time.Hour
	layoutTTL    = 7 * 24 * time.Hour
)

// GetThemeKey 根据访客ID生成主题偏好的Redis键
func GetThemeKey(visitorID string) string {
	return fmt.Sprintf("console:theme:%s", visitorID)
}

// GetSelectionKey 根据访客ID生成选中作品的Redis键
func GetSelectionKey(visitorID string) string {
	return fmt.Sprintf("console:selection:%s", visitorID)
}

// GetHintKey 根据访客ID生成首次提示标记的Redis键
func GetHintKey(visitorID string) string {
	return fmt.Sprintf("console:hint:%s", visitorID)
}

// GetLayoutKey 根据布局种子生成位置缓存的Redis键
func GetLayoutKey(seed string) string {
	return fmt.Sprintf("console:layout:%s", seed)
}

// SetTheme 保存访客的主题偏好（存储规范化后的纯值）
func SetTheme(ctx context.Context, visitorID, theme string) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	err := RedisClient.Set(ctx, GetThemeKey(visitorID), theme, themeTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set theme: %w", err)
	}
	return nil
}

// GetTheme 读取访客存储的主题偏好原文。旧客户端写入过
// {"mode":"dark"} 形式的JSON信封，调用方负责兼容解析。
// 未存储时返回空字符串。
func GetTheme(ctx context.Context, visitorID string) (string, error) {
	if RedisClient == nil {
		return "", fmt.Errorf("Redis client not initialized")
	}
	val, err := RedisClient.Get(ctx, GetThemeKey(visitorID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get theme: %w", err)
	}
	return val, nil
}

// SetSelection 保存访客当前选中的作品ID，0表示清除选择
func SetSelection(ctx context.Context, visitorID string, workID int64) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	key := GetSelectionKey(visitorID)
	if workID == 0 {
		if err := RedisClient.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to clear selection: %w", err)
		}
		return nil
	}
	err := RedisClient.Set(ctx, key, workID, selectionTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set selection: %w", err)
	}
	return nil
}

// GetSelection 读取访客上次选中的作品ID，未存储时返回0
func GetSelection(ctx context.Context, visitorID string) (int64, error) {
	if RedisClient == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}
	val, err := RedisClient.Get(ctx, GetSelectionKey(visitorID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get selection: %w", err)
	}
	return val, nil
}

// MarkHintShown 记录本会话已向访客展示过操作提示
func MarkHintShown(ctx context.Context, visitorID string) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	err := RedisClient.Set(ctx, GetHintKey(visitorID), 1, hintTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to mark hint shown: %w", err)
	}
	return nil
}

// HintShown 查询访客是否已看过操作提示
func HintShown(ctx context.Context, visitorID string) (bool, error) {
	if RedisClient == nil {
		return false, fmt.Errorf("Redis client not initialized")
	}
	_, err := RedisClient.Get(ctx, GetHintKey(visitorID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get hint flag: %w", err)
	}
	return true, nil
}

// SetLayoutPositions 缓存一次布局计算结果，键为布局种子
func SetLayoutPositions(ctx context.Context, seed string, positions map[int64]scatter.Position) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	data, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("failed to marshal layout positions: %w", err)
	}
	err = RedisClient.Set(ctx, GetLayoutKey(seed), data, layoutTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache layout positions: %w", err)
	}
	return nil
}

// GetLayoutPositions 读取缓存的布局结果，未命中时返回nil
func GetLayoutPositions(ctx context.Context, seed string) (map[int64]scatter.Position, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	data, err := RedisClient.Get(ctx, GetLayoutKey(seed)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get layout positions: %w", err)
	}
	var positions map[int64]scatter.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layout positions: %w", err)
	}
	return positions, nil
}
