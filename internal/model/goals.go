package model

// ProductivityGoals は生産性目標の設定を表す。
// 外部の設定ストアが所有し、本エンジンからは読み取り専用。
type ProductivityGoals struct {
	DailyFocusGoal  int // 分
	DailyBreaksGoal int // 回
	DailyTasksGoal  int // タスク管理サブシステム用。スコアには使用しない
}
