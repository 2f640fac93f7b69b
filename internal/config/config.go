package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Settlement string `mapstructure:"settlement"`
	Audit      string `mapstructure:"audit"`
}

// PoolSplitItem 订单分账表的一项
// Bps 为万分比（basis points），整数运算避免浮点误差
type PoolSplitItem struct {
	Pool string `mapstructure:"pool"`
	Bps  int64  `mapstructure:"bps"`
}

// BusinessConfig 业务参数表
//
// 分账比例、奖励费率、积分成本等全部在服务构造时注入，
// 业务逻辑不读取任何全局状态，便于测试时使用固定参数表
type BusinessConfig struct {
	PoolSplit []PoolSplitItem `mapstructure:"pool_split"` // 订单分账表，Bps 总和必须为 10000

	PointValue           int64 `mapstructure:"point_value"`             // 1 积分抵扣的金额（最小货币单位）
	MaxPointsDiscountBps int64 `mapstructure:"max_points_discount_bps"` // 积分抵扣上限（占订单总额的万分比）

	ReferralRateBps int64 `mapstructure:"referral_rate_bps"` // 推荐奖励费率（占订单总额）
	TeamRateBps     int64 `mapstructure:"team_rate_bps"`     // 团队奖励费率（占订单总额）
	TeamDepth       int   `mapstructure:"team_depth"`        // 团队奖励最大层数

	SubsidyPointCost    int64 `mapstructure:"subsidy_point_cost"`    // 每次周补贴扣减的积分数
	SubsidyCouponAmount int64 `mapstructure:"subsidy_coupon_amount"` // 周补贴优惠券面额

	DividendMinLevel int   `mapstructure:"dividend_min_level"` // 参与分红的最低层级
	DividendPerLevel int64 `mapstructure:"dividend_per_level"` // 每层级的分红额度

	AutoReceiveDays int `mapstructure:"auto_receive_days"` // 发货后自动确认收货的天数

	MaxRetryCount int `mapstructure:"max_retry_count"` // 事务消息最大重试次数
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	return config
}

// DefaultBusiness 返回一套缺省业务参数
// 测试与本地启动共用，生产环境由 config.yaml 覆盖
func DefaultBusiness() BusinessConfig {
	return BusinessConfig{
		PoolSplit: []PoolSplitItem{
			{Pool: "platform_pool", Bps: 8000},
			{Pool: "subsidy_pool", Bps: 1200},
			{Pool: "dividend_pool", Bps: 200},
			{Pool: "welfare_pool", Bps: 100},
			{Pool: "promotion_pool", Bps: 500},
		},
		PointValue:           1,
		MaxPointsDiscountBps: 5000,
		ReferralRateBps:      500,
		TeamRateBps:          200,
		TeamDepth:            6,
		SubsidyPointCost:     100,
		SubsidyCouponAmount:  1000,
		DividendMinLevel:     1,
		DividendPerLevel:     100,
		AutoReceiveDays:      7,
		MaxRetryCount:        5,
	}
}
