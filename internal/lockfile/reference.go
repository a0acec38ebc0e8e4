package lockfile

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Domains 对应 Composer 配置中的 github-domains / gitlab-domains，
// 用于识别自建 GitHub Enterprise 与 GitLab 实例。
type Domains struct {
	GitHub []string
	GitLab []string
}

// DefaultDomains 与 Composer 默认配置一致。
func DefaultDomains() Domains {
	return Domains{
		GitHub: []string{"github.com"},
		GitLab: []string{"gitlab.com"},
	}
}

var (
	githubLegacyArchive = regexp.MustCompile(`(?i)^https?://(?:www\.)?github\.com/([^/]+)/([^/]+)/(zip|tar)ball/(.+)$`)
	githubWebArchive    = regexp.MustCompile(`(?i)^https?://(?:www\.)?github\.com/([^/]+)/([^/]+)/archive/.+\.(zip|tar)(?:\.gz)?$`)
	githubAPIArchive    = regexp.MustCompile(`(?i)^https?://api\.github\.com/repos/([^/]+)/([^/]+)/(zip|tar)ball(?:/.+)?$`)
	bitbucketArchive    = regexp.MustCompile(`(?i)^https?://(?:www\.)?bitbucket\.org/([^/]+)/([^/]+)/get/(.+)\.(zip|tar\.gz|tar\.bz2)$`)
	gitlabArchive       = regexp.MustCompile(`(?i)^https?://(?:www\.)?gitlab\.com/api/v[34]/projects/([^/]+)/repository/archive\.(zip|tar\.gz|tar\.bz2|tar)\?sha=.+$`)
	enterpriseGitHub    = regexp.MustCompile(`(?i)(/repos/[^/]+/[^/]+/(zip|tar)ball)(?:/.+)?$`)
	enterpriseGitLab    = regexp.MustCompile(`(?i)(/api/v[34]/projects/[^/]+/repository/archive\.(?:zip|tar\.gz|tar\.bz2|tar)\?sha=).+$`)
)

// UpdateDistReference 把 reference 写入 dist 地址，规则与 Composer 的
// Url::updateDistReference 相同；不识别的地址原样返回。
func UpdateDistReference(rawURL, ref string, domains Domains) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case host == "api.github.com" || host == "github.com" || host == "www.github.com":
		if m := githubLegacyArchive.FindStringSubmatch(rawURL); m != nil {
			return githubAPIURL(m[1], m[2], m[3], ref)
		}
		if m := githubWebArchive.FindStringSubmatch(rawURL); m != nil {
			return githubAPIURL(m[1], m[2], m[3], ref)
		}
		if m := githubAPIArchive.FindStringSubmatch(rawURL); m != nil {
			return githubAPIURL(m[1], m[2], m[3], ref)
		}
	case host == "bitbucket.org" || host == "www.bitbucket.org":
		if m := bitbucketArchive.FindStringSubmatch(rawURL); m != nil {
			return "https://bitbucket.org/" + m[1] + "/" + m[2] + "/get/" + ref + "." + m[4]
		}
	case host == "gitlab.com" || host == "www.gitlab.com":
		if m := gitlabArchive.FindStringSubmatch(rawURL); m != nil {
			return "https://gitlab.com/api/v4/projects/" + m[1] + "/repository/archive." + m[2] + "?sha=" + ref
		}
	case slices.Contains(domains.GitHub, host):
		return replaceSuffix(enterpriseGitHub, rawURL, ref)
	case slices.Contains(domains.GitLab, host):
		return replaceSuffix(enterpriseGitLab, rawURL, ref)
	}
	return rawURL
}

func githubAPIURL(owner, repo, kind, ref string) string {
	return "https://api.github.com/repos/" + owner + "/" + repo + "/" + kind + "ball/" + ref
}

// replaceSuffix 保留第一个捕获组并以 ref 替换剩余部分。
func replaceSuffix(pattern *regexp.Regexp, rawURL, ref string) string {
	loc := pattern.FindStringSubmatchIndex(rawURL)
	if loc == nil {
		return rawURL
	}
	prefix := rawURL[loc[2]:loc[3]]
	separator := ""
	if !strings.HasSuffix(prefix, "=") {
		separator = "/"
	}
	return rawURL[:loc[0]] + prefix + separator + ref
}
