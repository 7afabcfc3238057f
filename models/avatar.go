package models

import "hash/fnv"

// 头像调色板,按名字哈希选色,同名玩家在所有端看到同一颜色。
var avatarPalette = []string{
	"#ef4444", "#f97316", "#f59e0b", "#84cc16", "#22c55e", "#14b8a6",
	"#06b6d4", "#3b82f6", "#6366f1", "#8b5cf6", "#d946ef", "#ec4899",
}

// AvatarColorFor maps a player name onto the palette.
func AvatarColorFor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return avatarPalette[h.Sum32()%uint32(len(avatarPalette))]
}
