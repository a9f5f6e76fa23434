package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MatchConfig 模板定位的持久化默认值
type MatchConfig struct {
	// Method 相关计算方式: auto | direct | fft | opencv
	Method string `json:"method"`
	// PlotPath 诊断图默认输出路径，为空时不输出
	PlotPath string `json:"plot_path"`
	// LogLevel 日志级别
	LogLevel string `json:"log_level"`
	// LogFile 日志文件路径，为空时只输出到控制台
	LogFile string `json:"log_file"`
}

// DefaultMatchConfig 默认配置
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Method:   "auto",
		PlotPath: "",
		LogLevel: "WARN",
		LogFile:  "",
	}
}

// Manager 配置管理器
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return NewManagerWithDir(filepath.Join(homeDir, ".subimage"))
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// Load 加载配置，文件不存在时返回默认配置
// 文件中缺省的字段保持默认值
func (m *Manager) Load() (*MatchConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.configFile)
	if os.IsNotExist(err) {
		return DefaultMatchConfig(), nil
	}
	if err != nil {
		return DefaultMatchConfig(), fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := DefaultMatchConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return DefaultMatchConfig(), fmt.Errorf("解析配置文件失败: %w", err)
	}
	return config, nil
}

// Save 保存配置
func (m *Manager) Save(config *MatchConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// Clear 清除配置
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.configFile)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}

// 全局配置管理器
var defaultManager = NewManager()

// GetDefaultManager 获取默认配置管理器
func GetDefaultManager() *Manager {
	return defaultManager
}
