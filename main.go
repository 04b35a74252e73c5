package main

import (
	"github.com/shouni/go-earnings-calendar/cmd"
)

// main 関数は、cmdパッケージのExecuteに処理を委譲します。
// エラー時の終了処理は clibase.Execute の中で行われます。
func main() {
	cmd.Execute()
}
