package sqlinline

const QSelectCampaignForUpdate = `--sql d81f91e6-c5d7-4da1-9614-f67c979dc243
select address, id, name, description, category, location, metrics, media_uris,
       target_amount, raised_amount, status, authority, deposit, version, created_at, deadline
from campaigns
where address = $1::text
for update;
`

const QInsertCampaign = `--sql 3af78a42-b7fd-4a4f-ab98-3d0eee8224ce
insert into campaigns(address, id, name, description, category, location, metrics, media_uris,
                      target_amount, raised_amount, status, authority, deposit, version, created_at, deadline)
values ($1::text, $2::text, $3::text, $4::text, $5::text, $6::text, $7::jsonb, $8::jsonb,
        $9::bigint, $10::bigint, $11::text, $12::text, $13::bigint, 0, $14::timestamptz, $15::timestamptz);
`

const QUpdateCampaignState = `--sql 9f391371-3bc9-43e8-ac5e-b4f09571ab5c
update campaigns
set raised_amount = $2::bigint, status = $3::text, version = version + 1
where address = $1::text and version = $4::bigint;
`

const QDeleteCampaign = `--sql 7f2a6856-ccd7-4468-9093-c96f48deddae
delete from campaigns
where address = $1::text;
`

const QListCampaigns = `--sql d7071a8f-0a01-42cf-8a24-385ec8cfe464
select address, id, name, description, category, location, metrics, media_uris,
       target_amount, raised_amount, status, authority, deposit, version, created_at, deadline
from campaigns
order by id asc;
`
