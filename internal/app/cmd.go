package app

// Command はプロセスの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーとソケットハブを起動する。
	CommandServe Command = "serve"
	// CommandWorker は通知保持ジョブを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は /health を確認する（distrolessイメージ用）。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand は args からサブコマンドを読み取る。
// 引数なし、または不明な引数の場合は CommandServe を返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
