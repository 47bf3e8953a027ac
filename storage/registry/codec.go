package registry

import (
	"errors"
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// A service record is a protobuf message. A field that is
// unset is not written. Tags and maps carry a presence marker
// so that an empty list or map survives a restart.
//
//  message Service {
//    string service_name = 1;
//    string service_id = 2;
//    string service_address = 3;
//    sint64 service_port = 4;
//    repeated string service_tags = 5;
//    bool has_service_tags = 6;
//    repeated Pair service_meta = 7;
//    bool has_service_meta = 8;
//    bool service_enable_tag_override = 9;
//    string id = 10;
//    string node = 11;
//    string address = 12;
//    string datacenter = 13;
//    repeated Pair tagged_addresses = 14;
//    bool has_tagged_addresses = 15;
//    repeated Pair node_meta = 16;
//    bool has_node_meta = 17;
//  }
//
//  message Pair {
//    string key = 1;
//    string value = 2;
//  }
const (
	serviceNameField              protowire.Number = 1
	serviceIDField                protowire.Number = 2
	serviceAddressField           protowire.Number = 3
	servicePortField              protowire.Number = 4
	serviceTagsField              protowire.Number = 5
	hasServiceTagsField           protowire.Number = 6
	serviceMetaField              protowire.Number = 7
	hasServiceMetaField           protowire.Number = 8
	serviceEnableTagOverrideField protowire.Number = 9
	idField                       protowire.Number = 10
	nodeField                     protowire.Number = 11
	addressField                  protowire.Number = 12
	datacenterField               protowire.Number = 13
	taggedAddressesField          protowire.Number = 14
	hasTaggedAddressesField       protowire.Number = 15
	nodeMetaField                 protowire.Number = 16
	hasNodeMetaField              protowire.Number = 17
	pairKeyField                  protowire.Number = 1
	pairValueField                protowire.Number = 2
)

func appendString(b []byte, num protowire.Number, s *string) []byte {
	if s == nil {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendString(b, *s)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)

	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMap(b []byte, num protowire.Number, presence protowire.Number, m map[string]string) []byte {
	if m == nil {
		return b
	}

	b = appendBool(b, presence, true)
	keys := make([]string, 0, len(m))

	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		var pair []byte

		pair = protowire.AppendTag(pair, pairKeyField, protowire.BytesType)
		pair = protowire.AppendString(pair, key)
		pair = protowire.AppendTag(pair, pairValueField, protowire.BytesType)
		pair = protowire.AppendString(pair, m[key])

		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, pair)
	}

	return b
}

func marshalService(service Service) []byte {
	var b []byte

	b = protowire.AppendTag(b, serviceNameField, protowire.BytesType)
	b = protowire.AppendString(b, service.ServiceName)
	b = appendString(b, serviceIDField, service.ServiceID)
	b = appendString(b, serviceAddressField, service.ServiceAddress)

	if service.ServicePort != nil {
		b = protowire.AppendTag(b, servicePortField, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(*service.ServicePort)))
	}

	if service.ServiceTags != nil {
		b = appendBool(b, hasServiceTagsField, true)

		for _, tag := range service.ServiceTags {
			b = protowire.AppendTag(b, serviceTagsField, protowire.BytesType)
			b = protowire.AppendString(b, tag)
		}
	}

	b = appendMap(b, serviceMetaField, hasServiceMetaField, service.ServiceMeta)

	if service.ServiceEnableTagOverride != nil {
		b = appendBool(b, serviceEnableTagOverrideField, *service.ServiceEnableTagOverride)
	}

	b = appendString(b, idField, service.ID)
	b = appendString(b, nodeField, service.Node)
	b = appendString(b, addressField, service.Address)
	b = appendString(b, datacenterField, service.Datacenter)
	b = appendMap(b, taggedAddressesField, hasTaggedAddressesField, service.TaggedAddresses)
	b = appendMap(b, nodeMetaField, hasNodeMetaField, service.NodeMeta)

	return b
}

func unmarshalPair(b []byte) (string, string, error) {
	var key, value string

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)

		if n < 0 {
			return "", "", protowire.ParseError(n)
		}

		b = b[n:]

		switch {
		case num == pairKeyField && typ == protowire.BytesType:
			key, n = protowire.ConsumeString(b)
		case num == pairValueField && typ == protowire.BytesType:
			value, n = protowire.ConsumeString(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return "", "", protowire.ParseError(n)
		}

		b = b[n:]
	}

	return key, value, nil
}

func unmarshalService(b []byte) (Service, error) {
	var service Service
	var hasName bool

	str := func(b []byte, target **string) int {
		s, n := protowire.ConsumeString(b)

		if n >= 0 {
			*target = &s
		}

		return n
	}

	present := func(b []byte, set func()) int {
		v, n := protowire.ConsumeVarint(b)

		if n >= 0 && protowire.DecodeBool(v) {
			set()
		}

		return n
	}

	pair := func(b []byte, target *map[string]string) (int, error) {
		encoded, n := protowire.ConsumeBytes(b)

		if n < 0 {
			return n, nil
		}

		key, value, err := unmarshalPair(encoded)

		if err != nil {
			return n, err
		}

		if *target == nil {
			*target = map[string]string{}
		}

		(*target)[key] = value

		return n, nil
	}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)

		if n < 0 {
			return Service{}, protowire.ParseError(n)
		}

		b = b[n:]

		var err error

		switch {
		case num == serviceNameField && typ == protowire.BytesType:
			service.ServiceName, n = protowire.ConsumeString(b)
			hasName = true
		case num == serviceIDField && typ == protowire.BytesType:
			n = str(b, &service.ServiceID)
		case num == serviceAddressField && typ == protowire.BytesType:
			n = str(b, &service.ServiceAddress)
		case num == servicePortField && typ == protowire.VarintType:
			var v uint64

			v, n = protowire.ConsumeVarint(b)
			port := int(protowire.DecodeZigZag(v))
			service.ServicePort = &port
		case num == serviceTagsField && typ == protowire.BytesType:
			var tag string

			tag, n = protowire.ConsumeString(b)
			service.ServiceTags = append(service.ServiceTags, tag)
		case num == hasServiceTagsField && typ == protowire.VarintType:
			n = present(b, func() {
				if service.ServiceTags == nil {
					service.ServiceTags = []string{}
				}
			})
		case num == serviceMetaField && typ == protowire.BytesType:
			n, err = pair(b, &service.ServiceMeta)
		case num == hasServiceMetaField && typ == protowire.VarintType:
			n = present(b, func() {
				if service.ServiceMeta == nil {
					service.ServiceMeta = map[string]string{}
				}
			})
		case num == serviceEnableTagOverrideField && typ == protowire.VarintType:
			var v uint64

			v, n = protowire.ConsumeVarint(b)
			enableTagOverride := protowire.DecodeBool(v)
			service.ServiceEnableTagOverride = &enableTagOverride
		case num == idField && typ == protowire.BytesType:
			n = str(b, &service.ID)
		case num == nodeField && typ == protowire.BytesType:
			n = str(b, &service.Node)
		case num == addressField && typ == protowire.BytesType:
			n = str(b, &service.Address)
		case num == datacenterField && typ == protowire.BytesType:
			n = str(b, &service.Datacenter)
		case num == taggedAddressesField && typ == protowire.BytesType:
			n, err = pair(b, &service.TaggedAddresses)
		case num == hasTaggedAddressesField && typ == protowire.VarintType:
			n = present(b, func() {
				if service.TaggedAddresses == nil {
					service.TaggedAddresses = map[string]string{}
				}
			})
		case num == nodeMetaField && typ == protowire.BytesType:
			n, err = pair(b, &service.NodeMeta)
		case num == hasNodeMetaField && typ == protowire.VarintType:
			n = present(b, func() {
				if service.NodeMeta == nil {
					service.NodeMeta = map[string]string{}
				}
			})
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return Service{}, protowire.ParseError(n)
		}

		if err != nil {
			return Service{}, fmt.Errorf("field %d: %s", num, err)
		}

		b = b[n:]
	}

	if !hasName {
		return Service{}, errors.New("service has no name")
	}

	return service, nil
}
