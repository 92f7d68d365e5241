package cfddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

func newCloudflareProvider(token string) (cf *cloudflareProvider, err error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	cf = new(cloudflareProvider)
	cf.api, err = cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	cf.logger = zap.NewNop()
	return cf, nil
}

// cloudflareProvider implements Provider on top of the cloudflare-go SDK.
type cloudflareProvider struct {
	api    *cloudflare.API
	logger *zap.Logger
	dryRun bool
}

// SyncRecords looks up the records matching name in zone and rewrites the
// content of every record whose address differs from addr.
// TTL and the proxied flag are carried over from the existing record;
// only the content changes.
func (cf *cloudflareProvider) SyncRecords(ctx context.Context, zone string, name string, addr netip.Addr) (Result, error) {
	result := Result{Addr: addr}

	if cf.api == nil {
		return result, errors.New("cloudflareProvider must be constructed through cfddns.New")
	}

	zoneID, err := cf.zoneID(ctx, zone)
	if err != nil {
		return result, err
	}
	cf.logger.Debug("found zone", zap.String("zone", zone), zap.String("zone_id", zoneID))

	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
		Type: recordType(addr),
		Name: name,
	})
	if err != nil {
		return result, fmt.Errorf("error listing DNS records for %s: %w", name, err)
	}
	result.Matched = len(records)
	if len(records) == 0 {
		cf.logger.Info("no matching records in zone",
			zap.String("name", name),
			zap.String("zone", zone),
			zap.String("type", recordType(addr)))
		return result, nil
	}

	for _, record := range records {
		if record.Content == addr.String() {
			result.Current++
			cf.logger.Info("record already up to date",
				zap.String("record_id", record.ID),
				zap.Stringer("addr", addr))
			continue
		}
		if cf.dryRun {
			result.Updated++
			cf.logger.Info("dry run - would update record",
				zap.String("record_id", record.ID),
				zap.String("old", record.Content),
				zap.String("new", addr.String()))
			continue
		}
		_, err := cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.UpdateDNSRecordParams{
			ID:      record.ID,
			Type:    record.Type,
			Name:    record.Name,
			Content: addr.String(),
			TTL:     record.TTL,
			Proxied: record.Proxied,
		})
		if err != nil {
			return result, fmt.Errorf("error updating record %s: %w", record.ID, err)
		}
		result.Updated++
		cf.logger.Info("record updated",
			zap.String("record_id", record.ID),
			zap.String("old", record.Content),
			zap.String("new", addr.String()))
	}

	return result, nil
}

// zoneID resolves a zone name to its ID using an exact-name listing.
func (cf *cloudflareProvider) zoneID(ctx context.Context, zone string) (string, error) {
	zones, err := cf.api.ListZones(ctx, zone)
	if err != nil {
		return "", fmt.Errorf("error listing zones: %w", err)
	}
	if len(zones) == 0 {
		return "", fmt.Errorf("%w: %q", ErrZoneNotFound, zone)
	}
	return zones[0].ID, nil
}

func recordType(a netip.Addr) string {
	if a.Is4() {
		return "A"
	}
	return "AAAA"
}
