package cmd

import (
	"context"
	"fmt"
	"log"

	"Praetorius/config"
	"Praetorius/core/feed"
	"Praetorius/db"
	"Praetorius/repository"

	"github.com/spf13/cobra"
)

var importFeedPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "把作品feed导入数据库",
	Long:  `读取JSON作品feed并整体写入数据库，不在feed中的作品会被下线。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		path := importFeedPath
		if path == "" {
			path = cfg.WorksFeedPath
		}

		fmt.Printf("正在读取作品feed: %s\n", path)
		doc, err := feed.Load(path)
		if err != nil {
			log.Fatalf("读取feed失败: %v", err)
		}
		fmt.Printf("解析到 %d 个作品\n", len(doc.Works))

		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("无法连接数据库: %v", err)
		}
		defer db.DB.Close()
		if err := db.InitDB(cfg); err != nil {
			log.Fatalf("初始化数据库失败: %v", err)
		}
		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("无法建立GORM连接: %v", err)
		}
		defer db.CloseGormDB()

		workRepo := repository.NewGormWorkRepository(db.GormDB)
		if err := workRepo.ReplaceAll(context.Background(), doc.Works); err != nil {
			log.Fatalf("导入作品失败: %v", err)
		}
		fmt.Println("作品导入完成！")
	},
}

func init() {
	importCmd.Flags().StringVar(&importFeedPath, "feed", "", "feed文件路径（默认使用配置中的路径）")
	rootCmd.AddCommand(importCmd)
}
