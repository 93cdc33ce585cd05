package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/api"
	"github.com/RecoveryAshes/storecrawl/internal/config"
	"github.com/RecoveryAshes/storecrawl/internal/core"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
	"github.com/spf13/cobra"
)

// generate 子命令参数
var (
	genCount  int
	genOutput string
	genSeed   int64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "生成测试用商品URL",
	Long: `按分类和商品编号前缀随机生成商品URL。

不指定 -o 时输出到标准输出,每行一个URL。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if genCount < 1 {
			return fmt.Errorf("生成数量必须大于0,当前值: %d", genCount)
		}

		seed := genSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))

		crawl := appConfig.Crawl
		urls := core.GenerateURLs(crawl.BaseURL, crawl.LocalePath, genCount, rng)

		if genOutput == "" {
			for _, u := range urls {
				fmt.Println(u)
			}
			return nil
		}

		if err := utils.WriteURLsToFile(genOutput, urls); err != nil {
			return fmt.Errorf("写入URL文件失败: %w", err)
		}
		utils.Infof("✅ 已生成 %d 个URL: %s", len(urls), genOutput)
		return nil
	},
}

// init 子命令参数
var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "生成配置文件模板",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if len(args) == 1 {
			path = args[0]
		}

		if err := config.WriteTemplate(path, initForce); err != nil {
			return err
		}
		utils.Infof("✅ 配置文件模板已写入: %s", path)
		return nil
	},
}

// serve 子命令参数
var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动本地表单页面",
	Long: `在本地启动一个表单页面,可以设置抓取参数、启动和停止运行并查看进度。

同一时间只允许一个运行。Ctrl+C 关闭服务并中断正在进行的运行。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			appConfig.Server.Addr = serveAddr
		}
		if err := appConfig.Validate(); err != nil {
			return err
		}

		crawl := appConfig.Crawl
		headerManager, err := core.NewHeaderManager(core.DefaultReferer(crawl.BaseURL, crawl.LocalePath), appConfig.Headers, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}
		requestHeaders, err := headerManager.GetHeaders()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handlers := api.NewHandlers(*appConfig, requestHeaders, logBuffer)
		return api.NewServer(appConfig.Server.Addr, handlers).Run(ctx)
	},
}

func init() {
	generateCmd.Flags().IntVarP(&genCount, "count", "n", 100, "生成数量")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "输出文件 (默认标准输出)")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 0, "随机种子 (0表示按时间)")

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "覆盖已存在的文件")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8765", "监听地址")
}
