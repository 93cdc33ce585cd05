package crawlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ErrInsufficientMemory 可用内存不足以启动浏览器
var ErrInsufficientMemory = errors.New("可用内存不足")

// ResourceMonitor 系统资源检查
// 浏览器方式启动前做一次预检,内存不足时直接回退HTTP方式
type ResourceMonitor struct {
	minFree uint64 // 字节

	virtualMemory func() (*mem.VirtualMemoryStat, error)
	cpuPercent    func(time.Duration, bool) ([]float64, error)
}

// MemoryStatus 资源快照
type MemoryStatus struct {
	TotalMemory     uint64  // 系统总内存(字节)
	AvailableMemory uint64  // 可用内存(字节)
	UsedPercent     float64 // 内存使用率(%)
	CPUPercent      float64 // CPU使用率(%),获取失败时为-1
}

// NewResourceMonitor 创建资源检查器,minFreeMB<=0 表示不检查
func NewResourceMonitor(minFreeMB int) *ResourceMonitor {
	var minFree uint64
	if minFreeMB > 0 {
		minFree = uint64(minFreeMB) * 1024 * 1024
	}
	return &ResourceMonitor{
		minFree:       minFree,
		virtualMemory: mem.VirtualMemory,
		cpuPercent:    cpu.Percent,
	}
}

// Snapshot 读取当前内存和CPU状态
func (rm *ResourceMonitor) Snapshot() (MemoryStatus, error) {
	vm, err := rm.virtualMemory()
	if err != nil {
		return MemoryStatus{}, fmt.Errorf("获取系统内存失败: %w", err)
	}

	status := MemoryStatus{
		TotalMemory:     vm.Total,
		AvailableMemory: vm.Available,
		UsedPercent:     vm.UsedPercent,
		CPUPercent:      -1,
	}
	if pcts, err := rm.cpuPercent(200*time.Millisecond, false); err == nil && len(pcts) > 0 {
		status.CPUPercent = pcts[0]
	}
	return status, nil
}

// CheckBrowser 检查是否有足够内存启动浏览器
// 无法读取系统信息时放行
func (rm *ResourceMonitor) CheckBrowser() error {
	if rm.minFree == 0 {
		return nil
	}

	status, err := rm.Snapshot()
	if err != nil {
		utils.Warnf("资源预检跳过: %v", err)
		return nil
	}

	utils.Infof("系统内存: 总计 %.2f GB, 可用 %.2f GB, CPU %.1f%%",
		gib(status.TotalMemory), gib(status.AvailableMemory), status.CPUPercent)

	if status.AvailableMemory < rm.minFree {
		return fmt.Errorf("%w: 可用 %d MB, 需要 %d MB", ErrInsufficientMemory,
			status.AvailableMemory/(1024*1024), rm.minFree/(1024*1024))
	}
	return nil
}

func gib(b uint64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}
