package cmd

import (
	"Praetorius/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动作品控制台服务器",
	Long:  `启动作品控制台的HTTP服务器，提供WebSocket会话、API服务与乐谱/音频资源`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
