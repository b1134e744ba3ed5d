package pipeline

import "time"

type StartFileInput struct {
	Path string `json:"path" binding:"required"` // 服务器本地视频文件路径
	FPS  int    `json:"fps"`
}

// RunnerInfo 一路管线的运行状态
type RunnerInfo struct {
	SourceID  string    `json:"source_id"`
	TaskID    string    `json:"task_id"`
	Queue     string    `json:"queue"`
	IsFile    bool      `json:"is_file"`
	Dynamic   bool      `json:"dynamic"`
	StartedAt time.Time `json:"started_at"`
}

// StopOutput 停止结果，Forced 表示有任务超时未退出被放弃
type StopOutput struct {
	SourceID string `json:"source_id"`
	Forced   bool   `json:"forced"`
}
