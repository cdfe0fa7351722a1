// Package repository はデータ永続化のインターフェースとその実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/recipes/internal/model"
)

// RecipeStorage はレシピコレクション全体を1単位として読み書きする永続化インターフェース。
// 実装は保存先のパス以外の状態を持たない。
type RecipeStorage interface {
	// Load は永続化されたコレクションを保存順で読み込む。
	// 保存先が存在しない場合は空のコレクションとnilを返す。
	// 読み込みや解析に失敗した場合はStorageIOErrorを返す。
	Load(ctx context.Context) ([]model.Recipe, error)

	// Save はコレクション全体をアトミックに書き込む。
	// 書き込み途中のファイルが他の読み手から見えることはない。
	Save(ctx context.Context, recipes []model.Recipe) error
}
