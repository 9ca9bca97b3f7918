package types

// Payload 表示流水线中传递的一次规则配置下发
type Payload struct {
	ID        string
	Path      string // 配置来源文件
	Content   []byte
	Timestamp int64
	Checksum  string // 内容的MD5指纹，由去重阶段填充
	Error     error
}

// Stage 表示处理阶段
type Stage int

const (
	StagePayloadDedup Stage = iota + 1 //配置去重
	StagePayloadApply                  //应用到规则存储
)
