package sqlinline

const QSelectReceipt = `--sql 70552305-e09a-4349-b7d6-09feb1854aa2
select address, campaign, donor, amount, deposit, created_at
from donation_receipts
where address = $1::text;
`

const QInsertReceipt = `--sql 6cf06b89-0138-4a15-afa0-063d60bbb261
insert into donation_receipts(address, campaign, donor, amount, deposit, created_at)
values ($1::text, $2::text, $3::text, $4::bigint, $5::bigint, $6::timestamptz);
`

const QDeleteReceipt = `--sql 95607275-a54e-4ec9-b09e-32c50cd2d1d1
delete from donation_receipts
where address = $1::text;
`

const QDeleteCampaignReceipts = `--sql 8aead131-5321-4d62-b6ac-f5ee280d6f5b
delete from donation_receipts
where campaign = $1::text
returning address, campaign, donor, amount, deposit, created_at;
`
