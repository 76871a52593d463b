package discoverystore

import (
	"fmt"
	"strconv"
	"strings"
)

const moduleTag = "module"
const capabilityTagPrefix = "capability:"

// sanitizeMetaKey 发现存储禁止 meta key 中出现 "."，写入前需替换为 "_"
func sanitizeMetaKey(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

// EncodeRecord 将一次注册请求按 §4.2 编码为扁平化的发现存储记录
func EncodeRecord(in RegisterInput) Record {
	host, port := in.Connectivity.addressPort()

	meta := make(map[string]string, len(in.Metadata)+8)
	for k, v := range in.Metadata {
		meta[sanitizeMetaKey(k)] = v
	}

	meta["advertised-host"] = in.Connectivity.AdvertisedHost
	meta["advertised-port"] = strconv.Itoa(in.Connectivity.AdvertisedPort)
	meta["version"] = in.Version
	meta["service-type"] = in.Kind
	meta["service-name"] = in.Name

	tags := make([]string, 0, len(in.Tags)+len(in.Capabilities)+1)
	tags = append(tags, in.Tags...)
	for _, c := range in.Capabilities {
		tags = append(tags, capabilityTagPrefix+c)
	}
	if in.Kind == "MODULE" {
		tags = append(tags, moduleTag)
	}

	meta["http_endpoint_count"] = strconv.Itoa(len(in.HTTPEndpoints))
	for i, ep := range in.HTTPEndpoints {
		prefix := fmt.Sprintf("http_endpoint_%d_", i)
		meta[prefix+"scheme"] = ep.Scheme
		meta[prefix+"host"] = ep.Host
		meta[prefix+"port"] = strconv.Itoa(ep.Port)
		if ep.BasePath != "" {
			meta[prefix+"base_path"] = ep.BasePath
		}
		if ep.HealthPath != "" {
			meta[prefix+"health_path"] = ep.HealthPath
		}
		meta[prefix+"tls_enabled"] = strconv.FormatBool(ep.TLSEnabled)
	}

	if in.HTTPSchemaArtifactID != "" {
		meta["http_schema_artifact_id"] = in.HTTPSchemaArtifactID
	}
	if in.HTTPSchemaVersion != "" {
		meta["http_schema_version"] = in.HTTPSchemaVersion
	}

	return Record{
		ID:      in.ServiceID,
		Name:    in.Name,
		Address: host,
		Port:    port,
		Tags:    tags,
		Meta:    meta,
	}
}

// DecodeHTTPEndpoints 从记录的 meta 中还原 §4.2 编码的 HTTP 端点列表
func DecodeHTTPEndpoints(meta map[string]string) []HTTPEndpoint {
	countStr, ok := meta["http_endpoint_count"]
	if !ok {
		return nil
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count <= 0 {
		return nil
	}

	endpoints := make([]HTTPEndpoint, 0, count)
	for i := 0; i < count; i++ {
		prefix := fmt.Sprintf("http_endpoint_%d_", i)
		port, _ := strconv.Atoi(meta[prefix+"port"])
		tls, _ := strconv.ParseBool(meta[prefix+"tls_enabled"])
		endpoints = append(endpoints, HTTPEndpoint{
			Scheme:     meta[prefix+"scheme"],
			Host:       meta[prefix+"host"],
			Port:       port,
			BasePath:   meta[prefix+"base_path"],
			HealthPath: meta[prefix+"health_path"],
			TLSEnabled: tls,
		})
	}
	return endpoints
}

// HasTag 判断 tags 中是否包含给定值（大小写敏感，完全匹配）
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsModule 判断记录是否携带 "module" 标签
func IsModule(r Record) bool {
	return HasTag(r.Tags, moduleTag)
}

// Capabilities 从 tags 中提取 "capability:" 前缀的能力集合
func Capabilities(tags []string) []string {
	var caps []string
	for _, t := range tags {
		if strings.HasPrefix(t, capabilityTagPrefix) {
			caps = append(caps, strings.TrimPrefix(t, capabilityTagPrefix))
		}
	}
	return caps
}
