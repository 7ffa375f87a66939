package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// StorefrontConfig carries settings operators may change without a restart.
type StorefrontConfig struct {
	PaymentMessages map[string]string `mapstructure:"paymentMessages"`
	DefaultPageSize int               `mapstructure:"defaultPageSize"`
	MaxPageSize     int               `mapstructure:"maxPageSize"`
	OTPTTLMinutes   int               `mapstructure:"otpTTLMinutes"`
	OTPLength       int               `mapstructure:"otpLength"`
	TopProducts     int               `mapstructure:"topProducts"`
	RecentOrders    int               `mapstructure:"recentOrders"`
}

func DefaultStorefrontConfig() StorefrontConfig {
	return StorefrontConfig{
		PaymentMessages: map[string]string{
			"07": "Trừ tiền thành công. Giao dịch bị nghi ngờ (liên quan tới lừa đảo, giao dịch bất thường)",
			"09": "Thẻ/Tài khoản của khách hàng chưa đăng ký dịch vụ InternetBanking tại ngân hàng",
			"10": "Khách hàng xác thực thông tin thẻ/tài khoản không đúng quá 3 lần",
			"11": "Đã hết hạn chờ thanh toán. Xin quý khách vui lòng thực hiện lại giao dịch",
			"12": "Thẻ/Tài khoản của khách hàng bị khóa",
			"13": "Quý khách nhập sai mật khẩu xác thực giao dịch (OTP)",
			"24": "Khách hàng hủy giao dịch",
			"51": "Tài khoản của quý khách không đủ số dư để thực hiện giao dịch",
			"65": "Tài khoản của Quý khách đã vượt quá hạn mức giao dịch trong ngày",
			"75": "Ngân hàng thanh toán đang bảo trì",
			"79": "KH nhập sai mật khẩu thanh toán quá số lần quy định",
			"99": "Lỗi không xác định",
		},
		DefaultPageSize: 10,
		MaxPageSize:     100,
		OTPTTLMinutes:   5,
		OTPLength:       6,
		TopProducts:     5,
		RecentOrders:    10,
	}
}

// PaymentMessage resolves a gateway response code to a customer-facing message.
func (c StorefrontConfig) PaymentMessage(code string) string {
	if msg, ok := c.PaymentMessages[strings.TrimSpace(code)]; ok && msg != "" {
		return msg
	}
	return "Giao dịch thất bại"
}

// ClampPageSize applies the default when size is unset and caps it at MaxPageSize.
func (c StorefrontConfig) ClampPageSize(size int) int {
	if size <= 0 {
		return c.DefaultPageSize
	}
	if c.MaxPageSize > 0 && size > c.MaxPageSize {
		return c.MaxPageSize
	}
	return size
}

type StorefrontHolder struct {
	current atomic.Value // holds StorefrontConfig
}

func NewStorefrontHolder(log *zap.Logger) (*StorefrontHolder, error) {
	return newStorefrontHolder(log, "/etc/qatech", ".")
}

// NewStaticStorefrontHolder returns a holder that never reloads.
func NewStaticStorefrontHolder(cfg StorefrontConfig) *StorefrontHolder {
	holder := &StorefrontHolder{}
	holder.current.Store(cfg)
	return holder
}

func newStorefrontHolder(log *zap.Logger, paths ...string) (*StorefrontHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.storefront")

	v := viper.New()
	v.SetConfigName("storefront")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("QATECH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultStorefrontConfig()
	v.SetDefault("storefront.paymentMessages", defaults.PaymentMessages)
	v.SetDefault("storefront.defaultPageSize", defaults.DefaultPageSize)
	v.SetDefault("storefront.maxPageSize", defaults.MaxPageSize)
	v.SetDefault("storefront.otpTTLMinutes", defaults.OTPTTLMinutes)
	v.SetDefault("storefront.otpLength", defaults.OTPLength)
	v.SetDefault("storefront.topProducts", defaults.TopProducts)
	v.SetDefault("storefront.recentOrders", defaults.RecentOrders)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	cfg, err := decodeStorefront(v)
	if err != nil {
		return nil, err
	}

	holder := &StorefrontHolder{}
	holder.current.Store(cfg)

	if found {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeStorefront(v)
			if err != nil {
				log.Warn("storefront config reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("storefront config reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *StorefrontHolder) Get() StorefrontConfig {
	if h == nil {
		return DefaultStorefrontConfig()
	}
	cfg, ok := h.current.Load().(StorefrontConfig)
	if !ok {
		return DefaultStorefrontConfig()
	}
	return cfg
}

func decodeStorefront(v *viper.Viper) (StorefrontConfig, error) {
	var cfg StorefrontConfig
	if err := v.UnmarshalKey("storefront", &cfg); err != nil {
		return StorefrontConfig{}, err
	}
	if err := validateStorefront(cfg); err != nil {
		return StorefrontConfig{}, err
	}
	return cfg, nil
}

func validateStorefront(cfg StorefrontConfig) error {
	if cfg.DefaultPageSize <= 0 {
		return errors.New("storefront.defaultPageSize must be positive")
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		return errors.New("storefront.maxPageSize must be >= defaultPageSize")
	}
	if cfg.OTPTTLMinutes <= 0 {
		return errors.New("storefront.otpTTLMinutes must be positive")
	}
	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		return errors.New("storefront.otpLength must be between 4 and 10")
	}
	return nil
}
