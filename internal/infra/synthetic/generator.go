// Package synthetic produces placeholder device configurations when no
// backend can answer. Output is deterministic for a given prompt.
package synthetic

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is the coarse kind of configuration a prompt asks for.
type Category string

const (
	CategoryBasic     Category = "basic"
	CategoryRouting   Category = "routing"
	CategorySwitching Category = "switching"
	CategorySecurity  Category = "security"
	CategoryGeneral   Category = "general"
)

// DefaultDeviceName is used when the prompt names no device.
const DefaultDeviceName = "Router1"

// Marker is the comment line every synthetic configuration carries.
const Marker = "! Generated by fallback system"

// Order matters: the first category with a matching keyword wins.
var keywords = []struct {
	category Category
	words    []string
}{
	{CategoryBasic, []string{"basic", "initial", "初期", "基本"}},
	{CategoryRouting, []string{"ospf", "routing", "ルーティング"}},
	{CategorySwitching, []string{"vlan", "switch", "スイッチ"}},
	{CategorySecurity, []string{"security", "acl", "セキュリティ"}},
}

var deviceRe = regexp.MustCompile(`(R\d+|SW\d+|Router\d+|Switch\d+)`)

// Generator implements port.FallbackGenerator.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// Classify maps a prompt onto a Category by case-insensitive keyword match.
func Classify(prompt string) Category {
	lower := strings.ToLower(prompt)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.category
			}
		}
	}
	return CategoryGeneral
}

// DeviceName extracts the first device identifier from the prompt.
func DeviceName(prompt string) string {
	if m := deviceRe.FindString(prompt); m != "" {
		return m
	}
	return DefaultDeviceName
}

// Generate returns a configuration skeleton for the prompt. It never fails.
func (g *Generator) Generate(prompt string) string {
	category := Classify(prompt)
	device := DeviceName(prompt)

	var b strings.Builder
	fmt.Fprintf(&b, "! %s - %s Configuration\n", device, title(category))
	b.WriteString(Marker + "\n")
	b.WriteString("! Requirements:\n")
	for _, line := range strings.Split(strings.TrimSpace(prompt), "\n") {
		b.WriteString("!   " + strings.TrimRight(line, "\r") + "\n")
	}
	b.WriteString("\n")
	b.WriteString(baseSettings(device, category))
	b.WriteString(body(device, category))
	return b.String()
}

func title(c Category) string {
	s := string(c)
	return strings.ToUpper(s[:1]) + s[1:]
}

func baseSettings(device string, c Category) string {
	s := "! Basic Settings\n" +
		"hostname " + device + "\n" +
		"ip routing\n" +
		"service timestamps debug datetime msec\n" +
		"service timestamps log datetime msec\n"
	if c == CategoryBasic {
		s += "no ip domain-lookup\n" +
			"ip domain-name company.local\n"
	}
	return s + "\n"
}

// routerID uses the trailing digit of the device name as the host octet.
func routerID(device string) string {
	last := device[len(device)-1]
	if last < '0' || last > '9' {
		last = '1'
	}
	return "10.1.1." + string(last)
}

func body(device string, c Category) string {
	switch c {
	case CategoryBasic:
		return `! Interface Configuration
interface GigabitEthernet0/0/0
 description Uplink Connection
 no shutdown
!
interface GigabitEthernet0/0/1
 description Downlink Connection
 no shutdown
!
`
	case CategoryRouting:
		return `! OSPF Configuration
router ospf 1
 router-id ` + routerID(device) + `
 network 10.1.1.0 0.0.0.255 area 0
 passive-interface default
 no passive-interface GigabitEthernet0/0/0
 no passive-interface GigabitEthernet0/0/1
!
`
	case CategorySwitching:
		return `! VLAN Configuration
vlan 10
 name Engineering
!
vlan 20
 name Sales
!

! Interface Configuration
interface GigabitEthernet0/1
 switchport mode access
 switchport access vlan 10
!
interface GigabitEthernet0/2
 switchport mode access
 switchport access vlan 20
!
`
	case CategorySecurity:
		return `! Standard ACL
ip access-list standard ACL_MANAGEMENT
 permit 192.168.100.0 0.0.0.255
 deny any
!

! Interface Security
interface GigabitEthernet0/0/0
 ip access-group ACL_MANAGEMENT in
!
`
	default:
		return `! Interface Configuration
interface GigabitEthernet0/0/0
 no shutdown
!
interface GigabitEthernet0/0/1
 no shutdown
!
`
	}
}
