package extractors

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/miradorstack/mirador-recall/internal/models"
)

var (
	ipv4Pattern     = regexp.MustCompile(`\b(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})\b`)
	portWordPattern = regexp.MustCompile(`(?i)\bports?\s+(\d{1,5})\b`)
	hostPortPattern = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9.-]*:(\d{1,5})\b`)
	systemPattern   = regexp.MustCompile(`(?i)^[a-z][a-z0-9]*(-[a-z0-9]+)+$`)
)

var knownProtocols = map[string]string{
	"bgp": "bgp", "dhcp": "dhcp", "dns": "dns", "ftp": "ftp", "grpc": "grpc",
	"http": "http", "https": "https", "icmp": "icmp", "ipsec": "ipsec",
	"kerberos": "kerberos", "ldap": "ldap", "mqtt": "mqtt", "ntp": "ntp",
	"oauth": "oauth", "rdp": "rdp", "saml": "saml", "sftp": "sftp",
	"smb": "smb", "smtp": "smtp", "snmp": "snmp", "ssh": "ssh", "ssl": "ssl",
	"tcp": "tcp", "tls": "tls", "udp": "udp",
}

var knownVendors = map[string]string{
	"akamai": "akamai", "aws": "aws", "azure": "azure", "cisco": "cisco",
	"cloudflare": "cloudflare", "crowdstrike": "crowdstrike", "datadog": "datadog",
	"f5": "f5", "fortinet": "fortinet", "fortigate": "fortinet", "gcp": "gcp",
	"github": "github", "juniper": "juniper", "microsoft": "microsoft",
	"okta": "okta", "paloalto": "palo alto", "splunk": "splunk", "zscaler": "zscaler",
}

// RecognizeEntities pulls entities that can be spotted lexically out of free
// text: IPv4 addresses, port numbers, well-known protocol and vendor names
// and hyphenated host names that carry a digit (vpn-gw-01).
func RecognizeEntities(text string) models.Entities {
	var out models.Entities

	for _, m := range ipv4Pattern.FindAllStringSubmatch(text, -1) {
		if validOctets(m[1:]) {
			out.Observables = append(out.Observables, m[0])
		}
	}
	for _, pattern := range []*regexp.Regexp{portWordPattern, hostPortPattern} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= 65535 {
				out.Ports = append(out.Ports, strconv.Itoa(n))
			}
		}
	}

	for _, token := range words(text) {
		lower := strings.ToLower(token)
		if name, ok := knownProtocols[lower]; ok {
			out.Protocols = append(out.Protocols, name)
			continue
		}
		if name, ok := knownVendors[lower]; ok {
			out.Vendors = append(out.Vendors, name)
			continue
		}
		if systemPattern.MatchString(token) && strings.ContainsAny(token, "0123456789") {
			out.Systems = append(out.Systems, lower)
		}
	}
	return out.Normalize()
}

// words splits on anything but letters, digits, '-' and '.', drops a
// trailing :port and trims edge punctuation.
func words(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '.' && r != ':'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if i := strings.IndexByte(f, ':'); i >= 0 {
			f = f[:i]
		}
		if f = strings.Trim(f, ".-"); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func validOctets(parts []string) bool {
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}
