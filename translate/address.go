package translate

import (
	"net"
	"strings"

	gocontext "context"
)

// GuessPrivateAddress decodes names like ip-10-0-0-5.ec2.internal into
// 10.0.0.5. Anything else yields "".
func GuessPrivateAddress(dnsName string) string {
	label := firstLabel(dnsName)
	if !strings.HasPrefix(label, "ip-") {
		return ""
	}

	addr := strings.TrimPrefix(strings.Replace(label, "-", ".", -1), "ip.")
	if net.ParseIP(addr) == nil {
		return ""
	}
	return addr
}

// ResolvePublicAddress looks dnsName up and returns its first address.
// Lookup failures fall back to reading the address out of the host label,
// e.g. ec2-1-2-3-4.compute.example.com gives 1.2.3.4.
func ResolvePublicAddress(ctx gocontext.Context, resolver HostResolver, dnsName string) string {
	if dnsName == "" {
		return ""
	}

	if resolver != nil {
		addrs, err := resolver.LookupHost(ctx, dnsName)
		if err == nil && len(addrs) > 0 {
			return addrs[0]
		}
	}

	label := strings.Replace(firstLabel(dnsName), "-", ".", -1)
	if len(label) <= 4 {
		return label
	}
	return label[4:]
}

func firstLabel(dnsName string) string {
	dnsName = strings.TrimSpace(dnsName)
	if i := strings.Index(dnsName, "."); i >= 0 {
		return dnsName[:i]
	}
	return dnsName
}
