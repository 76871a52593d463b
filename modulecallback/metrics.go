package modulecallback

const (
	// MetricChannelCacheHit 命中缓存中已存在的 Channel
	MetricChannelCacheHit = "modulecallback_channel_cache_hit_total"
	// MetricChannelCacheMiss 需要新建 Channel
	MetricChannelCacheMiss = "modulecallback_channel_cache_miss_total"
	// MetricChannelEvicted Channel 因空闲超时或容量淘汰被关闭
	MetricChannelEvicted = "modulecallback_channel_evicted_total"
	// MetricFetchDuration fetch_module_metadata 调用耗时（秒）
	MetricFetchDuration = "modulecallback_fetch_duration_seconds"

	// LabelModule 模块名标签
	LabelModule = "module"
	// LabelResult 调用结果标签 (success|failure)
	LabelResult = "result"
)
